package jobs

import (
	"errors"
	"fmt"

	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/gitutil"
)

// ValidateRequest checks the user supplied fields of req before any git or
// model work starts. It does not touch the repository beyond a stat.
func ValidateRequest(req *core.ReviewRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request cannot be nil", gitutil.ErrInvalidInput)
	}
	var errs []error
	if err := gitutil.ValidateProjectPath(req.ProjectPath); err != nil {
		errs = append(errs, err)
	}
	if err := gitutil.ValidateBranchName(req.SourceBranch); err != nil {
		errs = append(errs, fmt.Errorf("source branch: %w", err))
	}
	if err := gitutil.ValidateBranchName(req.TargetBranch); err != nil {
		errs = append(errs, fmt.Errorf("target branch: %w", err))
	}
	if len(errs) == 0 && req.SourceBranch == req.TargetBranch {
		errs = append(errs, fmt.Errorf("%w: source and target branch are both %q", gitutil.ErrInvalidInput, req.SourceBranch))
	}
	return errors.Join(errs...)
}
