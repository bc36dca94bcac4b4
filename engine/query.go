package engine

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/cespare/xxhash/v2"

	"github.com/arcbench/arcbench/internal/schemas"
)

// The fixed benchmark query, shared by every engine.
const (
	// MinAvgAge drops groups whose average age does not exceed it.
	MinAvgAge = 30.0
	// TopGroups caps the number of returned groups.
	TopGroups = 5
	// ExportMinAge is the export step's minimum age.
	ExportMinAge = 50
)

// FixedQuerySQL renders the benchmark query for the database-backed engines.
// Ties on the average are broken by name so results stay deterministic.
func FixedQuerySQL(from string) string {
	return fmt.Sprintf(
		"SELECT name, AVG(age) AS avg_age FROM %s GROUP BY name HAVING AVG(age) > %v ORDER BY avg_age DESC, name ASC LIMIT %d",
		from, MinAvgAge, TopGroups)
}

// groupStats is one name's running sum.
type groupStats struct {
	name  string
	sum   int64
	count int64
}

// aggregator folds (name, age) pairs into per-name averages. Groups are
// keyed by the xxhash of the name, with chaining for the rare collision.
type aggregator struct {
	groups map[uint64][]*groupStats
	rows   int64
}

func newAggregator() *aggregator {
	return &aggregator{groups: make(map[uint64][]*groupStats)}
}

func (a *aggregator) add(name string, age int64) {
	key := xxhash.Sum64String(name)
	for _, g := range a.groups[key] {
		if g.name == name {
			g.sum += age
			g.count++
			return
		}
	}
	a.groups[key] = append(a.groups[key], &groupStats{name: name, sum: age, count: 1})
}

// addRecord folds one batch into the aggregate. Rows with a null name or
// age are skipped, matching AVG's treatment of nulls. The record is not
// released.
func (a *aggregator) addRecord(record arrow.Record) error {
	names, ages, err := peopleColumns(record)
	if err != nil {
		return err
	}
	for i := 0; i < int(record.NumRows()); i++ {
		a.rows++
		if names.IsNull(i) || ages.IsNull(i) {
			continue
		}
		a.add(names.Value(i), ages.Value(i))
	}
	return nil
}

// results applies the having filter, the descending order with name
// tiebreak, and the limit.
func (a *aggregator) results() []Row {
	var rows []Row
	for _, chain := range a.groups {
		for _, g := range chain {
			avg := float64(g.sum) / float64(g.count)
			if avg > MinAvgAge {
				rows = append(rows, Row{Name: g.name, AvgAge: avg})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AvgAge != rows[j].AvgAge {
			return rows[i].AvgAge > rows[j].AvgAge
		}
		return rows[i].Name < rows[j].Name
	})
	if len(rows) > TopGroups {
		rows = rows[:TopGroups]
	}
	return rows
}

// peopleColumns locates the name and age columns of a people record.
func peopleColumns(record arrow.Record) (*array.String, *array.Int64, error) {
	schema := record.Schema()

	nameIdx := schema.FieldIndices(schemas.PeopleName)
	if len(nameIdx) == 0 {
		return nil, nil, fmt.Errorf("record has no %q column", schemas.PeopleName)
	}
	names, ok := record.Column(nameIdx[0]).(*array.String)
	if !ok {
		return nil, nil, fmt.Errorf("column %q is %T, expected string", schemas.PeopleName, record.Column(nameIdx[0]))
	}

	ageIdx := schema.FieldIndices(schemas.PeopleAge)
	if len(ageIdx) == 0 {
		return nil, nil, fmt.Errorf("record has no %q column", schemas.PeopleAge)
	}
	ages, ok := record.Column(ageIdx[0]).(*array.Int64)
	if !ok {
		return nil, nil, fmt.Errorf("column %q is %T, expected int64", schemas.PeopleAge, record.Column(ageIdx[0]))
	}

	return names, ages, nil
}
