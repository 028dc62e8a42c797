// Package errors provides structured errors with codes and metadata for
// the roll synchronization engine.
//
// Every failure surfaced by the engine carries a Code so callers can
// decide between retrying (transient transport trouble), halting
// (expired credentials, contract violations at registration time), and
// ignoring (unroutable events are not errors at all).
//
// Usage:
//
//	if cfg.Transport == nil {
//		return errors.InvalidArgument("transport is required")
//	}
//
//	if err := repo.Put(ctx, input); err != nil {
//		return errors.Wrap(err, "failed to cache roll")
//	}
//
//	if errors.IsNotFound(err) {
//		// no cached roll, fall through to subscription
//	}
package errors
