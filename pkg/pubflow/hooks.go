package pubflow

import (
	"context"

	"github.com/google/uuid"
)

// Hook system allows external layers (type-specific validation, search
// indexing, cache invalidation) to extend the save/delete lifecycle without
// modifying core code.

// Hooks defines all available lifecycle hooks.
type Hooks struct {
	// BeforeSave hooks run during the pre-persist phase, after the codec
	// has normalized the body and before the state machine guard.
	BeforeSave []BeforeSaveHook

	// AfterSave hooks run after alias finalization and notification
	// dispatch.
	AfterSave []AfterSaveHook

	BeforeDelete []BeforeDeleteHook
	AfterDelete  []AfterDeleteHook
}

// HookContext carries information through a hook chain.
type HookContext struct {
	Context   context.Context
	Metadata  map[string]any // custom metadata passed between hooks
	StopChain bool           // set to true to stop processing remaining hooks
}

// NewHookContext creates a new hook context.
func NewHookContext(ctx context.Context) *HookContext {
	return &HookContext{
		Context:  ctx,
		Metadata: make(map[string]any),
	}
}

// BeforeSaveHook is called before an entity is persisted.
type BeforeSaveHook func(hctx *HookContext, c *Content) error

// AfterSaveHook is called after an entity has been persisted.
type AfterSaveHook func(hctx *HookContext, c *Content, firstSave bool) error

// BeforeDeleteHook is called before an entity is deleted.
type BeforeDeleteHook func(hctx *HookContext, c *Content) error

// AfterDeleteHook is called after an entity has been deleted.
type AfterDeleteHook func(hctx *HookContext, id uuid.UUID) error

func (h *Hooks) executeBeforeSave(ctx context.Context, c *Content) error {
	if h == nil || len(h.BeforeSave) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.BeforeSave {
		if err := hook(hctx, c); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterSave(ctx context.Context, c *Content, firstSave bool) error {
	if h == nil || len(h.AfterSave) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterSave {
		if err := hook(hctx, c, firstSave); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeBeforeDelete(ctx context.Context, c *Content) error {
	if h == nil || len(h.BeforeDelete) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.BeforeDelete {
		if err := hook(hctx, c); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterDelete(ctx context.Context, id uuid.UUID) error {
	if h == nil || len(h.AfterDelete) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterDelete {
		if err := hook(hctx, id); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}
