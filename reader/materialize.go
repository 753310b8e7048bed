package reader

import (
	"context"

	"go.uber.org/zap"

	"github.com/bcio/bitcode/bcerrors"
	"github.com/bcio/bitcode/ir"
)

// rememberAndSkipFunctionBody matches the next FUNCTION block with the
// next declared definition, records where its payload starts and skips
// over it. Bodies appear in the same order as their declarations.
func (mr *moduleReader) rememberAndSkipFunctionBody() error {
	if len(mr.funcsWithBodies) == 0 {
		return bcerrors.Malformed(bcerrors.PhaseModule, "FUNCTION", "more function bodies than declarations")
	}
	fn := mr.funcsWithBodies[len(mr.funcsWithBodies)-1]
	mr.funcsWithBodies = mr.funcsWithBodies[:len(mr.funcsWithBodies)-1]

	mr.deferred[fn] = mr.bs.BitOffset()
	mr.log.Debug("deferred function body",
		zap.String("func", fn.Name()), zap.Uint64("bit", mr.deferred[fn]))
	return mr.skipOrStream(mr.bs.SkipBlock())
}

// IsMaterializable reports whether fn has a deferred body to decode.
func (mr *moduleReader) IsMaterializable(fn *ir.Function) bool {
	_, ok := mr.deferred[fn]
	return ok && fn.IsDeclaration()
}

// IsDematerializable reports whether fn's body can be dropped and
// re-decoded later.
func (mr *moduleReader) IsDematerializable(fn *ir.Function) bool {
	_, ok := mr.deferred[fn]
	return ok && !fn.IsDeclaration()
}

// Materialize decodes fn's deferred body. Functions that are not
// materializable, plain declarations included, are a no-op.
func (mr *moduleReader) Materialize(ctx context.Context, fn *ir.Function) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bit, ok := mr.deferred[fn]
	if !ok && mr.lazy && !mr.moduleParseDone {
		// The suspended module parse has not reached this body yet.
		mr.lazy = false
		if err := mr.parseModule(true); err != nil {
			return err
		}
		bit, ok = mr.deferred[fn]
	}
	if !ok {
		// Plain declarations and already-decoded bodies have nothing
		// to load.
		return nil
	}
	if !fn.IsDeclaration() {
		return nil
	}

	if err := mr.bs.Seek(bit); err != nil {
		return bcerrors.Stream(bit, err)
	}
	if err := mr.parseFunctionBody(fn); err != nil {
		return err
	}
	mr.applyIntrinsicUpgrades(fn)
	return nil
}

// Dematerialize drops fn's body, keeping the deferred offset so the
// body can be decoded again on demand.
func (mr *moduleReader) Dematerialize(fn *ir.Function) {
	if !mr.IsDematerializable(fn) {
		return
	}
	fn.DeleteBody()
	fn.Proto = true
}

// MaterializeAll finishes a lazy decode: the remaining module-level
// stream is consumed, every deferred body is decoded and intrinsic
// upgrades are finalized.
func (mr *moduleReader) MaterializeAll(ctx context.Context) error {
	if mr.lazy && !mr.moduleParseDone {
		mr.lazy = false
		if err := mr.parseModule(true); err != nil {
			return err
		}
	}
	for _, fn := range mr.m.Funcs {
		if mr.IsMaterializable(fn) {
			if err := mr.Materialize(ctx, fn); err != nil {
				return err
			}
		}
	}
	mr.finishIntrinsicUpgrades()
	return nil
}
