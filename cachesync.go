package dynload

// SyncCache flushes the data writes made by the image writer, fixups and
// relocator so the instruction-fetch path observes them (C7, §4.7). A
// unified-bus region needs one sync call; a split region needs one per
// bus since the two are independently cached on the chips this models.
// A port reporting errCacheSyncUnsupported is treated as success: it has
// no distinct cache-maintenance primitive to run, and SyncCache performs
// no flush for it.
func SyncCache(ctx *LoadContext, port Port) error {
	switch ctx.Mode {
	case ModeSplit:
		if err := syncOne(port, ctx.Split.TextBase, ctx.Split.TextSize); err != nil {
			return err
		}
		return syncOne(port, ctx.Split.DataBase, ctx.Split.DataSize)
	default:
		return syncOne(port, ctx.Unified.RAMBase, ctx.Unified.Size)
	}
}

func syncOne(port Port, base, size uint32) error {
	err := port.SyncCache(base, size)
	if err == nil {
		return nil
	}
	if err == errCacheSyncUnsupported {
		return nil
	}
	return err
}
