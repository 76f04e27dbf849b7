package node

import (
	"context"
	"fmt"

	"github.com/ppiankov/chainkernel/internal/eventlog"
)

// Replay re-executes every committed call recorded in the event log at
// path, keeping the original transaction ids. A replayed call that now
// reverts means the log and the code disagree, and stops the replay.
func (n *Node) Replay(ctx context.Context, path string) (int, error) {
	res, err := eventlog.Read(path, eventlog.Filter{CommittedOnly: true})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range res.Entries {
		if e.Deploy {
			continue
		}
		if _, err := n.world.Transact(ctx, e.Msg()); err != nil {
			return count, fmt.Errorf("replay %s (%s): %w", e.TxID, e.Method, err)
		}
		count++
	}
	if count > 0 {
		n.log.WithField("transactions", count).Info("event log replayed")
	}
	return count, nil
}
