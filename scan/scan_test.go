package scan

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"

	"github.com/thingsql/thingsql"
	"github.com/thingsql/thingsql/catalog"
	"github.com/thingsql/thingsql/execution"
	"github.com/thingsql/thingsql/iot"
	"github.com/thingsql/thingsql/physical"
)

// fakePage is one canned remote page keyed by the cursor that requests it.
type fakePage struct {
	records   []string
	nextToken string
}

type fakeFetcher struct {
	pages map[string]fakePage

	fetchCalls  []string
	fetchParams []map[string]string
	fetchLimits []int
	groupCalls  []string
	shadowCalls []string

	groups  map[string]string
	shadows map[string]string
	err     error
}

func (f *fakeFetcher) FetchPage(ctx context.Context, descriptor *catalog.ResourceDescriptor, params map[string]string, cursor string, limit int) (*iot.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.fetchCalls = append(f.fetchCalls, cursor)
	f.fetchParams = append(f.fetchParams, params)
	f.fetchLimits = append(f.fetchLimits, limit)

	page, ok := f.pages[cursor]
	if !ok {
		return nil, errors.Errorf("no page for cursor %q", cursor)
	}

	records := make([]*fastjson.Value, len(page.records))
	for i, raw := range page.records {
		parsed, err := fastjson.Parse(raw)
		if err != nil {
			return nil, err
		}
		records[i] = parsed
	}
	return &iot.Page{Records: records, NextToken: page.nextToken}, nil
}

func (f *fakeFetcher) ThingGroupsForThing(ctx context.Context, thingName string) ([]byte, error) {
	f.groupCalls = append(f.groupCalls, thingName)
	if groups, ok := f.groups[thingName]; ok {
		return []byte(groups), nil
	}
	return []byte("[]"), nil
}

func (f *fakeFetcher) ThingShadow(ctx context.Context, thingName string) ([]byte, error) {
	f.shadowCalls = append(f.shadowCalls, thingName)
	if shadow, ok := f.shadows[thingName]; ok {
		return []byte(shadow), nil
	}
	return nil, nil
}

func thingRecords(start, count int) []string {
	out := make([]string, count)
	for i := 0; i < count; i++ {
		out[i] = fmt.Sprintf(`{"thingName": "dev-%03d", "thingTypeName": "sensor"}`, start+i)
	}
	return out
}

func thingDescriptor(t *testing.T) *catalog.ResourceDescriptor {
	t.Helper()
	descriptor, err := catalog.Describe(catalog.KindThing)
	require.NoError(t, err)
	return descriptor
}

func TestScanPaginatesToExhaustion(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"":   {records: thingRecords(0, 50), nextToken: "C1"},
		"C1": {records: thingRecords(50, 50), nextToken: "C2"},
		"C2": {records: thingRecords(100, 10)},
	}}

	s := NewScan(fetcher)
	require.NoError(t, s.Open(thingDescriptor(t), []string{"thing_name"}, nil, nil, 0))

	ctx := context.Background()
	var names []string
	for {
		record, err := s.Next(ctx)
		if err == execution.ErrEndOfStream {
			break
		}
		require.NoError(t, err)
		names = append(names, record.Value("thing_name").Str)
	}

	require.Len(t, names, 110)
	for i, name := range names {
		assert.Equal(t, fmt.Sprintf("dev-%03d", i), name)
	}
	// Each cursor is consumed exactly once, in order.
	assert.Equal(t, []string{"", "C1", "C2"}, fetcher.fetchCalls)

	// The end of the stream is reported once; afterwards the scan is no
	// longer usable.
	_, err := s.Next(ctx)
	assert.Equal(t, ErrInvalidState, errors.Cause(err))
}

func TestScanRemoteParams(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"": {records: thingRecords(0, 3)},
	}}

	s := NewScan(fetcher)
	predicate := physical.NewPredicate(
		physical.NewVariable("thing_type_name"),
		physical.Equal,
		physical.NewConstantValue(thingsql.NewString("sensor")),
	)
	require.NoError(t, s.Open(thingDescriptor(t), []string{"thing_name"}, predicate, nil, 0))

	count := 0
	for {
		_, err := s.Next(context.Background())
		if err == execution.ErrEndOfStream {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 3, count)
	require.Len(t, fetcher.fetchParams, 1)
	assert.Equal(t, map[string]string{"thingTypeName": "sensor"}, fetcher.fetchParams[0])
}

func TestScanResidualFiltersAcrossPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"": {records: []string{
			`{"thingName": "dev-001", "version": 1}`,
			`{"thingName": "dev-002", "version": 5}`,
		}, nextToken: "C1"},
		"C1": {records: []string{
			`{"thingName": "dev-003", "version": 2}`,
			`{"thingName": "dev-004", "version": 9}`,
		}},
	}}

	s := NewScan(fetcher)
	predicate := physical.NewPredicate(
		physical.NewVariable("thing_version"),
		physical.MoreThan,
		physical.NewConstantValue(thingsql.NewInt(3)),
	)
	require.NoError(t, s.Open(thingDescriptor(t), []string{"thing_name", "thing_version"}, predicate, nil, 0))

	// Nothing is pushable, so the whole predicate runs locally.
	assert.Empty(t, s.Plan().RemoteParams)

	var names []string
	for {
		record, err := s.Next(context.Background())
		if err == execution.ErrEndOfStream {
			break
		}
		require.NoError(t, err)
		names = append(names, record.Value("thing_name").Str)
	}
	assert.Equal(t, []string{"dev-002", "dev-004"}, names)
}

func TestScanLimit(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"":   {records: thingRecords(0, 50), nextToken: "C1"},
		"C1": {records: thingRecords(50, 50), nextToken: "C2"},
		"C2": {records: thingRecords(100, 10)},
	}}

	s := NewScan(fetcher)
	require.NoError(t, s.Open(thingDescriptor(t), []string{"thing_name"}, nil, nil, 70))
	assert.Equal(t, 70, s.Plan().RemoteLimit)

	count := 0
	for {
		_, err := s.Next(context.Background())
		if err == execution.ErrEndOfStream {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 70, count)
	// The third page is never needed.
	assert.Equal(t, []string{"", "C1"}, fetcher.fetchCalls)
	// The per-page limit hint shrinks as the budget is consumed.
	assert.Equal(t, []int{70, 20}, fetcher.fetchLimits)
}

func TestScanStateMachine(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"": {records: thingRecords(0, 1)},
	}}
	ctx := context.Background()

	s := NewScan(fetcher)
	_, err := s.Next(ctx)
	assert.Equal(t, ErrInvalidState, errors.Cause(err))

	require.NoError(t, s.Open(thingDescriptor(t), nil, nil, nil, 0))
	err = s.Open(thingDescriptor(t), nil, nil, nil, 0)
	assert.Equal(t, ErrInvalidState, errors.Cause(err))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err = s.Next(ctx)
	assert.Equal(t, ErrInvalidState, errors.Cause(err))
}

func TestScanFailureIsTerminal(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"": {records: []string{`{"thingTypeName": "sensor"}`}},
	}}

	s := NewScan(fetcher)
	require.NoError(t, s.Open(thingDescriptor(t), []string{"thing_name"}, nil, nil, 0))

	_, err := s.Next(context.Background())
	assert.Equal(t, ErrSchemaViolation, errors.Cause(err))

	// Once failed, further calls report the invalid state instead.
	_, err = s.Next(context.Background())
	assert.Equal(t, ErrInvalidState, errors.Cause(err))
}

func TestScanUnknownColumn(t *testing.T) {
	s := NewScan(&fakeFetcher{})
	err := s.Open(thingDescriptor(t), []string{"nope"}, nil, nil, 0)
	assert.Error(t, err)
}

func TestScanAuxFetchedOnlyWhenRequested(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]fakePage{
			"": {records: thingRecords(0, 2)},
		},
		groups:  map[string]string{"dev-000": `[{"groupName": "floor-3"}]`},
		shadows: map[string]string{"dev-000": `{"state": {"reported": {"on": true}}}`},
	}

	s := NewScan(fetcher)
	require.NoError(t, s.Open(thingDescriptor(t), []string{"thing_name", "thing_groups", "thing_shadow_data"}, nil, nil, 0))

	record, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, thingsql.NewJson([]byte(`[{"groupName": "floor-3"}]`)), record.Value("thing_groups"))
	assert.Equal(t, thingsql.NewJson([]byte(`{"state": {"reported": {"on": true}}}`)), record.Value("thing_shadow_data"))

	record, err = s.Next(context.Background())
	require.NoError(t, err)
	// A thing without a shadow maps to null, an empty membership to [].
	assert.Equal(t, thingsql.NewJson([]byte("[]")), record.Value("thing_groups"))
	assert.True(t, record.Value("thing_shadow_data").IsNull())

	assert.Equal(t, []string{"dev-000", "dev-001"}, fetcher.groupCalls)
	assert.Equal(t, []string{"dev-000", "dev-001"}, fetcher.shadowCalls)
}

func TestScanNoAuxWithoutRequest(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]fakePage{
		"": {records: thingRecords(0, 2)},
	}}

	s := NewScan(fetcher)
	require.NoError(t, s.Open(thingDescriptor(t), []string{"thing_name"}, nil, nil, 0))

	for {
		_, err := s.Next(context.Background())
		if err == execution.ErrEndOfStream {
			break
		}
		require.NoError(t, err)
	}
	assert.Empty(t, fetcher.groupCalls)
	assert.Empty(t, fetcher.shadowCalls)
}

func TestScanIDsAreUnique(t *testing.T) {
	a := NewScan(&fakeFetcher{})
	b := NewScan(&fakeFetcher{})
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotEmpty(t, a.ID())
}
