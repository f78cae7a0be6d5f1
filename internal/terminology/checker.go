package terminology

import (
	"context"
	"fmt"
)

// ConflictChecker rejects writes whose identity already exists in the target
// owner's scope. It is a read-then-decide guard: the enclosing transaction
// boundary and the store's uniqueness guarantees remain the true linearization
// point for racing writers.
type ConflictChecker struct {
	sources SourceRepo
}

func NewConflictChecker(sources SourceRepo) *ConflictChecker {
	return &ConflictChecker{sources: sources}
}

// CheckID fails with ErrVersionConflict when a resource with the same
// (mnemonic id, version) exists under the given user or organization.
func (c *ConflictChecker) CheckID(ctx context.Context, username, org, id, version, resourceType string) error {
	if resourceType != ResourceCodeSystem {
		return fmt.Errorf("%w: unsupported resource type %q", ErrInternal, resourceType)
	}
	userHit, err := c.sources.ExistsByIDForUser(ctx, id, version, username)
	if err != nil {
		return err
	}
	orgHit, err := c.sources.ExistsByIDForOrg(ctx, id, version, org)
	if err != nil {
		return err
	}
	if userHit || orgHit {
		return fmt.Errorf("%w: the %s %s of version %s already exists", ErrVersionConflict, resourceType, id, version)
	}
	return nil
}

// CheckCanonicalURL is CheckID keyed on the canonical URL instead of the
// mnemonic id.
func (c *ConflictChecker) CheckCanonicalURL(ctx context.Context, username, org, url, version, resourceType string) error {
	if resourceType != ResourceCodeSystem {
		return fmt.Errorf("%w: unsupported resource type %q", ErrInternal, resourceType)
	}
	userHit, err := c.sources.ExistsByURLForUser(ctx, url, version, username)
	if err != nil {
		return err
	}
	orgHit, err := c.sources.ExistsByURLForOrg(ctx, url, version, org)
	if err != nil {
		return err
	}
	if userHit || orgHit {
		return fmt.Errorf("%w: the %s of canonical url %s and version %s already exists", ErrVersionConflict, resourceType, url, version)
	}
	return nil
}
