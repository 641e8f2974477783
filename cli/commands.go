package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	urfave "github.com/urfave/cli/v3"

	"github.com/oarkflow/valuestore"
	"github.com/oarkflow/valuestore/engine"
	"github.com/oarkflow/valuestore/lease"
)

// mergeLeaseTTL bounds how long a single MergeChanges call may hold the
// merge lease before another process is allowed to reclaim it.
const mergeLeaseTTL = 30 * time.Second

// mergeWithLease serializes MergeChanges across processes sharing a data
// directory. lm may be nil, in which case no coordination is attempted.
func mergeWithLease(ctx context.Context, mgr *valuestore.Manager, lm *lease.Manager, owner uuid.UUID) error {
	if lm == nil {
		return mgr.MergeChanges()
	}
	if err := lm.AcquireMerge(ctx, owner, mergeLeaseTTL); err != nil {
		return fmt.Errorf("acquiring merge lease: %w", err)
	}
	defer lm.ReleaseMerge(ctx, owner)
	return mgr.MergeChanges()
}

// jsonDocumentFile is the on-disk shape accepted by the add-document
// command: a docid and a map from slot number (as a JSON string key, since
// JSON object keys are always strings) to a raw value.
type jsonDocumentFile struct {
	Did    uint32            `json:"did"`
	Values map[string]string `json:"values"`
}

func loadJSONDocument(path string) (*valuestore.JSONDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f jsonDocumentFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing document file %s: %w", path, err)
	}

	values := make(map[valuestore.Slot][]byte, len(f.Values))
	for slotStr, value := range f.Values {
		slot, err := strconv.ParseUint(slotStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("document file %s: invalid slot key %q: %w", path, slotStr, err)
		}
		values[valuestore.Slot(slot)] = []byte(value)
	}
	return valuestore.NewJSONDocument(valuestore.Did(f.Did), values), nil
}

// NewAddDocumentCommand builds "add-document", which loads a document from
// a JSON file, folds its values into the manager, and merges immediately.
func NewAddDocumentCommand(mgr *valuestore.Manager, lm *lease.Manager) CommandBuilder {
	owner := uuid.New()
	return NewBaseCommand("add-document", "Add or update a document from a JSON file").
		SetUsage("valuestore add-document --file <path>").
		AddFlags(
			&urfave.StringFlag{Name: "file", Required: true, Usage: "path to a JSON document file"},
		).
		SetAction(func(ctx context.Context, cmd *urfave.Command) error {
			doc, err := loadJSONDocument(cmd.String("file"))
			if err != nil {
				return err
			}
			valStats := make(map[valuestore.Slot]valuestore.ValueStats)
			if _, err := mgr.AddDocument(doc.Did(), doc, valStats); err != nil {
				return err
			}
			if err := mgr.SetValueStats(valStats); err != nil {
				return err
			}
			if err := mergeWithLease(ctx, mgr, lm, owner); err != nil {
				return err
			}
			fmt.Printf("added document %d\n", doc.Did())
			return nil
		})
}

// NewGetValueCommand builds "get-value", printing one (did, slot) value.
func NewGetValueCommand(mgr *valuestore.Manager) CommandBuilder {
	return NewBaseCommand("get-value", "Print a document's value for one slot").
		SetUsage("valuestore get-value --did <id> --slot <n>").
		AddFlags(
			&urfave.IntFlag{Name: "did", Required: true},
			&urfave.IntFlag{Name: "slot", Required: true},
		).
		SetAction(func(ctx context.Context, cmd *urfave.Command) error {
			did := valuestore.Did(cmd.Int("did"))
			slot := valuestore.Slot(cmd.Int("slot"))
			value, err := mgr.GetValue(did, slot)
			if err != nil {
				return err
			}
			if value == nil {
				fmt.Println("(no value)")
				return nil
			}
			fmt.Println(string(value))
			return nil
		})
}

// NewDumpDocumentCommand builds "dump-document", printing every slot value
// a document has, in slot order.
func NewDumpDocumentCommand(mgr *valuestore.Manager) CommandBuilder {
	return NewBaseCommand("dump-document", "Print every slot value stored for a document").
		SetUsage("valuestore dump-document --did <id>").
		AddFlags(&urfave.IntFlag{Name: "did", Required: true}).
		SetAction(func(ctx context.Context, cmd *urfave.Command) error {
			did := valuestore.Did(cmd.Int("did"))
			values, err := mgr.GetAllValues(did)
			if err != nil {
				return err
			}
			slots := make([]valuestore.Slot, 0, len(values))
			for slot := range values {
				slots = append(slots, slot)
			}
			sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
			for _, slot := range slots {
				fmt.Printf("%d: %s\n", slot, values[slot])
			}
			return nil
		})
}

// NewStatsCommand builds "stats", printing a slot's aggregate ValueStats.
func NewStatsCommand(mgr *valuestore.Manager) CommandBuilder {
	return NewBaseCommand("stats", "Print a slot's aggregate value statistics").
		SetUsage("valuestore stats --slot <n>").
		AddFlags(&urfave.IntFlag{Name: "slot", Required: true}).
		SetAction(func(ctx context.Context, cmd *urfave.Command) error {
			slot := valuestore.Slot(cmd.Int("slot"))
			s, err := mgr.GetValueStats(slot)
			if err != nil {
				return err
			}
			fmt.Printf("freq=%d lower=%q upper=%q\n", s.Freq, s.LowerBound, s.UpperBound)
			return nil
		})
}

// NewForceMergeCommand builds "force-merge", flushing pending edits and the
// underlying engine's memtable.
func NewForceMergeCommand(mgr *valuestore.Manager, eng *engine.Engine, lm *lease.Manager) CommandBuilder {
	owner := uuid.New()
	return NewBaseCommand("force-merge", "Flush pending edits and the engine's memtable").
		SetAction(func(ctx context.Context, cmd *urfave.Command) error {
			if err := mergeWithLease(ctx, mgr, lm, owner); err != nil {
				return err
			}
			if err := eng.Flush(); err != nil {
				return err
			}
			fmt.Println("merge complete")
			return nil
		})
}
