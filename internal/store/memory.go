package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/quiznox/internal/apperr"
)

var (
	errUnknownTable = errors.New("table does not exist")
	errMissingKey   = errors.New("item is missing a key attribute")
)

var _ Client = (*Memory)(nil)

// Memory is an in-process Client. It pages like DynamoDB does: partitions
// come back in ascending sort key order, at most PageSize items per page.
type Memory struct {
	mu       sync.RWMutex
	tables   map[string]*memTable
	pageSize int
	fault    func(op string) error
}

type memTable struct {
	partitionKey string
	sortKey      string
	items        map[string]Item
}

// NewMemory returns an empty store. pageSize <= 0 means unbounded pages.
func NewMemory(pageSize int) *Memory {
	return &Memory{tables: make(map[string]*memTable), pageSize: pageSize}
}

// CreateTable registers a table schema. sortKey may be empty.
func (m *Memory) CreateTable(name, partitionKey, sortKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = &memTable{partitionKey: partitionKey, sortKey: sortKey, items: make(map[string]Item)}
}

// SetFault installs a hook consulted before every operation. A non-nil
// return fails the operation with that error wrapped as StoreUnavailable.
func (m *Memory) SetFault(fault func(op string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fault
}

func (m *Memory) begin(ctx context.Context, op, table string) (*memTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.StoreUnavailable("Memory."+op, table, err)
	}
	if m.fault != nil {
		if err := m.fault(op); err != nil {
			return nil, apperr.StoreUnavailable("Memory."+op, table, err)
		}
	}
	t, ok := m.tables[table]
	if !ok {
		return nil, apperr.StoreUnavailable("Memory."+op, table, errUnknownTable)
	}
	return t, nil
}

func (m *Memory) Query(ctx context.Context, in QueryInput) (Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.begin(ctx, "Query", in.Table)
	if err != nil {
		return Page{}, err
	}
	if in.PartitionKey != t.partitionKey {
		return Page{}, apperr.StoreUnavailable("Memory.Query", in.Table,
			fmt.Errorf("%q is not the partition key", in.PartitionKey))
	}

	var matched []Item
	for _, item := range t.items {
		if attrString(item[t.partitionKey]) == in.PartitionValue {
			matched = append(matched, item)
		}
	}
	cmp := func(a, b Item) int {
		c := compareAttr(a[t.sortKey], b[t.sortKey])
		if in.Descending {
			return -c
		}
		return c
	}
	sort.SliceStable(matched, func(i, j int) bool { return cmp(matched[i], matched[j]) < 0 })

	return page(matched, in.StartKey, m.limit(in.Limit), cmp, t.keyOf), nil
}

func (m *Memory) Scan(ctx context.Context, in ScanInput) (Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.begin(ctx, "Scan", in.Table)
	if err != nil {
		return Page{}, err
	}

	all := make([]Item, 0, len(t.items))
	for _, item := range t.items {
		all = append(all, item)
	}
	cmp := func(a, b Item) int {
		if c := compareAttr(a[t.partitionKey], b[t.partitionKey]); c != 0 {
			return c
		}
		return compareAttr(a[t.sortKey], b[t.sortKey])
	}
	sort.SliceStable(all, func(i, j int) bool { return cmp(all[i], all[j]) < 0 })

	return page(all, in.StartKey, m.limit(in.Limit), cmp, t.keyOf), nil
}

func (m *Memory) GetItem(ctx context.Context, table string, key Item) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.begin(ctx, "GetItem", table)
	if err != nil {
		return nil, err
	}
	id, err := t.id(key)
	if err != nil {
		return nil, apperr.StoreUnavailable("Memory.GetItem", table, err)
	}
	item, ok := t.items[id]
	if !ok {
		return nil, nil
	}
	return maps.Clone(item), nil
}

func (m *Memory) PutItem(ctx context.Context, table string, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.begin(ctx, "PutItem", table)
	if err != nil {
		return err
	}
	id, err := t.id(item)
	if err != nil {
		return apperr.StoreUnavailable("Memory.PutItem", table, err)
	}
	t.items[id] = maps.Clone(item)
	return nil
}

func (m *Memory) DeleteItem(ctx context.Context, table string, key Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.begin(ctx, "DeleteItem", table)
	if err != nil {
		return err
	}
	id, err := t.id(key)
	if err != nil {
		return apperr.StoreUnavailable("Memory.DeleteItem", table, err)
	}
	delete(t.items, id)
	return nil
}

// Len reports how many items a table holds.
func (m *Memory) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tables[table]; ok {
		return len(t.items)
	}
	return 0
}

func (m *Memory) limit(requested int32) int {
	limit := m.pageSize
	if requested > 0 && (limit <= 0 || int(requested) < limit) {
		limit = int(requested)
	}
	return limit
}

// page cuts one page out of items sorted by cmp, resuming after the first
// position that orders past startKey.
func page(ordered []Item, startKey Item, limit int, cmp func(a, b Item) int, keyOf func(Item) Item) Page {
	start := 0
	if len(startKey) > 0 {
		start = len(ordered)
		for i, item := range ordered {
			if cmp(item, startKey) > 0 {
				start = i
				break
			}
		}
	}

	rest := ordered[start:]
	if limit <= 0 || len(rest) <= limit {
		return Page{Items: cloneAll(rest)}
	}

	items := cloneAll(rest[:limit])
	return Page{Items: items, LastKey: keyOf(items[len(items)-1])}
}

func (t *memTable) keyOf(item Item) Item {
	key := Item{t.partitionKey: item[t.partitionKey]}
	if t.sortKey != "" {
		key[t.sortKey] = item[t.sortKey]
	}
	return key
}

func (t *memTable) id(item Item) (string, error) {
	pk, ok := item[t.partitionKey]
	if !ok {
		return "", fmt.Errorf("%w: %s", errMissingKey, t.partitionKey)
	}
	if t.sortKey == "" {
		return attrString(pk), nil
	}
	sk, ok := item[t.sortKey]
	if !ok {
		return "", fmt.Errorf("%w: %s", errMissingKey, t.sortKey)
	}
	return attrString(pk) + "\x00" + attrString(sk), nil
}

func cloneAll(items []Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = maps.Clone(item)
	}
	return out
}

func attrString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// compareAttr orders numbers numerically and everything else as strings.
func compareAttr(a, b types.AttributeValue) int {
	an, aok := a.(*types.AttributeValueMemberN)
	bn, bok := b.(*types.AttributeValueMemberN)
	if aok && bok {
		af, aerr := strconv.ParseFloat(an.Value, 64)
		bf, berr := strconv.ParseFloat(bn.Value, 64)
		if aerr == nil && berr == nil {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(attrString(a), attrString(b))
}
