// Package watcher follows a progress ledger while another process writes it.
//
// The installer replaces the ledger with an atomic rename after every item,
// so the Watcher observes the containing directory through fsnotify and
// re-reads the file whenever an event names it. Bursts of events are
// coalesced before the ledger is decoded.
//
// A follower prints each new state until interrupted:
//
//	w, err := watcher.New(cfg.Install.ProgressFile, func(l *ledger.Ledger) {
//		fmt.Print(output.RenderLedger(l))
//	})
//	if err != nil {
//		return err
//	}
//	if err := w.Start(); err != nil {
//		return err
//	}
//	<-ctx.Done()
//	return w.Stop()
package watcher
