// Package ingest reads the semicolon-delimited network definition
// files and assembles the in-memory network.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/signalsfoundry/fuelchain-optimizer/core"
	"github.com/signalsfoundry/fuelchain-optimizer/internal/logging"
	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

var ErrBadInput = errors.New("bad input file")

const (
	refineriesFile  = "refineries.csv"
	tanksFile       = "tanks.csv"
	customersFile   = "customers.csv"
	connectionsFile = "connections.csv"
	demandsFile     = "demands.csv"
)

var (
	refineryColumns   = []string{"id", "name", "capacity", "max_output", "production", "initial_stock"}
	tankColumns       = []string{"id", "name", "capacity", "max_input", "max_output", "initial_stock"}
	customerColumns   = []string{"id", "name", "max_input"}
	connectionColumns = []string{"id", "from_id", "to_id", "distance", "lead_time_days", "connection_type", "max_capacity"}
	demandColumns     = []string{"id", "customer_id", "quantity", "post_day", "start_delivery_day", "end_delivery_day"}
)

// Loader reads a network definition from a directory of CSV files.
type Loader struct {
	dir string
	log logging.Logger
}

// NewLoader builds a loader rooted at dir. A nil logger drops logs.
func NewLoader(dir string, log logging.Logger) *Loader {
	if log == nil {
		log = logging.Noop()
	}
	return &Loader{dir: dir, log: log}
}

// Load reads all definition files and returns the assembled network.
// Demand records present in demands.csv are pre-registered; the round
// server reveals most demands during the run.
func (l *Loader) Load(ctx context.Context) (*core.Network, error) {
	net := core.NewNetwork()

	if err := l.loadRefineries(net); err != nil {
		return nil, err
	}
	if err := l.loadTanks(net); err != nil {
		return nil, err
	}
	if err := l.loadCustomers(net); err != nil {
		return nil, err
	}
	if err := l.loadConnections(net); err != nil {
		return nil, err
	}

	demandCount, err := l.loadDemands(net)
	if err != nil {
		return nil, err
	}

	l.log.Info(ctx, "network loaded",
		logging.Int("nodes", len(net.Nodes())),
		logging.Int("links", len(net.Links())),
		logging.Int("demands", demandCount),
	)
	return net, nil
}

func (l *Loader) loadRefineries(net *core.Network) error {
	t, err := readTable(filepath.Join(l.dir, refineriesFile), refineryColumns)
	if err != nil {
		return err
	}
	for i, row := range t.rows {
		capacity, err := t.floatAt(row, "capacity")
		if err != nil {
			return rowErr(refineriesFile, i, err)
		}
		rate, err := t.floatAt(row, "production")
		if err != nil {
			return rowErr(refineriesFile, i, err)
		}
		output, err := t.floatAt(row, "max_output")
		if err != nil {
			return rowErr(refineriesFile, i, err)
		}
		stock, err := t.floatAt(row, "initial_stock")
		if err != nil {
			return rowErr(refineriesFile, i, err)
		}
		node, err := model.NewProductionNode(t.at(row, "id"), t.at(row, "name"), capacity, rate, output, stock)
		if err != nil {
			return rowErr(refineriesFile, i, err)
		}
		if err := net.AddNode(node); err != nil {
			return rowErr(refineriesFile, i, err)
		}
	}
	return nil
}

func (l *Loader) loadTanks(net *core.Network) error {
	t, err := readTable(filepath.Join(l.dir, tanksFile), tankColumns)
	if err != nil {
		return err
	}
	for i, row := range t.rows {
		capacity, err := t.floatAt(row, "capacity")
		if err != nil {
			return rowErr(tanksFile, i, err)
		}
		in, err := t.floatAt(row, "max_input")
		if err != nil {
			return rowErr(tanksFile, i, err)
		}
		out, err := t.floatAt(row, "max_output")
		if err != nil {
			return rowErr(tanksFile, i, err)
		}
		stock, err := t.floatAt(row, "initial_stock")
		if err != nil {
			return rowErr(tanksFile, i, err)
		}
		node, err := model.NewStorageNode(t.at(row, "id"), t.at(row, "name"), capacity, in, out, stock)
		if err != nil {
			return rowErr(tanksFile, i, err)
		}
		if err := net.AddNode(node); err != nil {
			return rowErr(tanksFile, i, err)
		}
	}
	return nil
}

func (l *Loader) loadCustomers(net *core.Network) error {
	t, err := readTable(filepath.Join(l.dir, customersFile), customerColumns)
	if err != nil {
		return err
	}
	for i, row := range t.rows {
		in, err := t.floatAt(row, "max_input")
		if err != nil {
			return rowErr(customersFile, i, err)
		}
		node, err := model.NewConsumptionNode(t.at(row, "id"), t.at(row, "name"), in)
		if err != nil {
			return rowErr(customersFile, i, err)
		}
		if err := net.AddNode(node); err != nil {
			return rowErr(customersFile, i, err)
		}
	}
	return nil
}

func (l *Loader) loadConnections(net *core.Network) error {
	t, err := readTable(filepath.Join(l.dir, connectionsFile), connectionColumns)
	if err != nil {
		return err
	}
	for i, row := range t.rows {
		distance, err := t.floatAt(row, "distance")
		if err != nil {
			return rowErr(connectionsFile, i, err)
		}
		lead, err := t.intAt(row, "lead_time_days")
		if err != nil {
			return rowErr(connectionsFile, i, err)
		}
		capacity, err := t.floatAt(row, "max_capacity")
		if err != nil {
			return rowErr(connectionsFile, i, err)
		}
		link, err := model.NewLink(
			t.at(row, "id"),
			t.at(row, "from_id"),
			t.at(row, "to_id"),
			distance,
			lead,
			model.ParseLinkType(t.at(row, "connection_type")),
			capacity,
		)
		if err != nil {
			return rowErr(connectionsFile, i, err)
		}
		if err := net.AddLink(link); err != nil {
			return rowErr(connectionsFile, i, err)
		}
	}
	return nil
}

func (l *Loader) loadDemands(net *core.Network) (int, error) {
	t, err := readTable(filepath.Join(l.dir, demandsFile), demandColumns)
	if err != nil {
		// Pre-known demands are optional; the server posts them.
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	count := 0
	for i, row := range t.rows {
		quantity, err := t.floatAt(row, "quantity")
		if err != nil {
			return 0, rowErr(demandsFile, i, err)
		}
		post, err := t.intAt(row, "post_day")
		if err != nil {
			return 0, rowErr(demandsFile, i, err)
		}
		start, err := t.intAt(row, "start_delivery_day")
		if err != nil {
			return 0, rowErr(demandsFile, i, err)
		}
		end, err := t.intAt(row, "end_delivery_day")
		if err != nil {
			return 0, rowErr(demandsFile, i, err)
		}
		dem, err := model.NewDemand(t.at(row, "id"), t.at(row, "customer_id"), quantity, post, start, end)
		if err != nil {
			return 0, rowErr(demandsFile, i, err)
		}
		if err := net.AddDemand(dem); err != nil {
			return 0, rowErr(demandsFile, i, err)
		}
		count++
	}
	return count, nil
}

// table is one parsed CSV file with lower-cased, trimmed headers.
type table struct {
	cols map[string]int
	rows [][]string
}

func readTable(path string, required []string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadInput, filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s: empty file", ErrBadInput, filepath.Base(path))
	}

	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s: missing columns %s", ErrBadInput, filepath.Base(path), strings.Join(missing, ", "))
	}
	if len(records) == 1 {
		return nil, fmt.Errorf("%w: %s: no data rows", ErrBadInput, filepath.Base(path))
	}

	return &table{cols: cols, rows: records[1:]}, nil
}

func (t *table) at(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) floatAt(row []string, col string) (float64, error) {
	raw := t.at(row, col)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %q is not a number", col, raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("column %s: negative value %g", col, v)
	}
	return v, nil
}

func (t *table) intAt(row []string, col string) (int, error) {
	raw := t.at(row, col)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("column %s: %q is not an integer", col, raw)
	}
	return v, nil
}

func rowErr(file string, rowIdx int, err error) error {
	return fmt.Errorf("%w: %s row %d: %v", ErrBadInput, file, rowIdx+2, err)
}
