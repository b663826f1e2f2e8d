// Package device holds the spoken device model exposed to the bulb
// emulation boundary.
//
// A Handler wraps one controller entity and presents it as a light with an
// on flag and a 0-255 brightness. The Registry arranges handlers into
// numbered slots whose indices stay stable across rescans and restarts,
// using an identity map that an IdentityStore persists.
//
// # Key Types
//
//   - Handler: one spoken device, classified once as KindOnOffLight or
//     KindDimmableLight
//   - Registry: slot table plus the id/name identity map
//   - Identity: the persisted {name, id, index} triple
//   - IdentityStore: FileIdentityStore (JSON file) or SQLiteIdentityStore
//
// # Usage
//
//	reg := device.NewRegistry()
//	reg.Load(identities)
//	reg.ResetForRescan(device.MaxIndex(identities))
//
//	handlers := []*device.Handler{device.NewHandler(entity, device.HandlerOptions{})}
//	for i, index := range reg.ReconcileAll(handlers) {
//	    if err := reg.Place(index, handlers[i]); err != nil {
//	        return err
//	    }
//	}
//	reg.Commit()
//	err := store.Save(ctx, reg.Snapshot())
package device
