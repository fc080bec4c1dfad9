// Package reconcile rebuilds the open-position set after a restart. The local
// snapshot is the baseline, so positions survive even when their ledger append
// failed mid-trade; the ledger history adds entries the snapshot flush missed
// and removes positions it shows a later exit record for.
package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"marlin/internal/logger"
	"marlin/internal/types"
)

// snapshotSchema is the shape a healthy snapshot file must have. Validation
// failures route the raw bytes through the tolerant gjson extraction instead
// of discarding the whole file.
const snapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["symbol", "side", "entry_price", "quantity"],
    "properties": {
      "symbol": {"type": "string", "minLength": 1},
      "side": {"enum": ["LONG", "SHORT"]},
      "entry_price": {"type": "number", "exclusiveMinimum": 0},
      "quantity": {"type": "number", "exclusiveMinimum": 0},
      "stop_price": {"type": "number"},
      "take_profit": {"type": "number"},
      "risk_distance": {"type": "number"},
      "extreme_price": {"type": "number"}
    }
  }
}`

// Store persists the open-position snapshot as a single JSON file, written
// atomically via rename.
type Store struct {
	path   string
	schema *jsonschema.Schema
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("snapshot store: path is required")
	}
	schema, err := jsonschema.CompileString("snapshot.json", snapshotSchema)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: compile schema: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{path: path, schema: schema}, nil
}

func (s *Store) Save(positions map[string]*types.Position) error {
	raw, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file is an empty book. A file that fails
// schema validation is salvaged entry by entry; entries missing the required
// fields are dropped with a warning rather than aborting startup.
func (s *Store) Load() (map[string]*types.Position, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*types.Position{}, nil
		}
		return nil, fmt.Errorf("snapshot load: %w", err)
	}
	if len(raw) == 0 {
		return map[string]*types.Position{}, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err == nil {
		if err := s.schema.Validate(doc); err == nil {
			var out map[string]*types.Position
			if err := json.Unmarshal(raw, &out); err == nil {
				return nonNil(out), nil
			}
		} else {
			logger.Warnf("snapshot %s failed validation, salvaging: %v", s.path, err)
		}
	} else {
		logger.Warnf("snapshot %s is not valid JSON, salvaging: %v", s.path, err)
	}
	return salvage(raw), nil
}

// salvage pulls whatever well-formed position entries exist out of a damaged
// snapshot. gjson tolerates trailing garbage and partial documents.
func salvage(raw []byte) map[string]*types.Position {
	out := map[string]*types.Position{}
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		symbol := value.Get("symbol").String()
		if symbol == "" {
			symbol = key.String()
		}
		side := types.Side(value.Get("side").String())
		entry := value.Get("entry_price").Float()
		qty := value.Get("quantity").Float()
		if symbol == "" || entry <= 0 || qty <= 0 || (side != types.SideLong && side != types.SideShort) {
			logger.Warnf("snapshot entry %q dropped during salvage", key.String())
			return true
		}
		p := &types.Position{
			Symbol:         symbol,
			Side:           side,
			EntryPrice:     entry,
			Quantity:       qty,
			StopPrice:      value.Get("stop_price").Float(),
			TakeProfit:     value.Get("take_profit").Float(),
			TakeProfit2:    value.Get("take_profit_2").Float(),
			RiskDistance:   value.Get("risk_distance").Float(),
			ExtremePrice:   value.Get("extreme_price").Float(),
			TrendTimeframe: value.Get("trend_tf").String(),
			EntryTimeframe: value.Get("entry_tf").String(),
			StopReason:     value.Get("stop_reason").String(),
			TargetReason:   value.Get("target_reason").String(),
		}
		if ts := value.Get("entry_time").String(); ts != "" {
			if parsed, err := parseTime(ts); err == nil {
				p.EntryTime = parsed
			}
		}
		out[symbol] = p
		return true
	})
	return out
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nonNil(in map[string]*types.Position) map[string]*types.Position {
	out := make(map[string]*types.Position, len(in))
	for sym, p := range in {
		if p != nil {
			out[sym] = p
		}
	}
	return out
}
