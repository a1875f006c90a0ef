package scan

import (
	"context"
	crand "crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"

	"github.com/thingsql/thingsql"
	"github.com/thingsql/thingsql/catalog"
	"github.com/thingsql/thingsql/execution"
	"github.com/thingsql/thingsql/iot"
	"github.com/thingsql/thingsql/physical"
)

// PageFetcher is the remote access the scan needs. *iot.Client implements
// it; tests drive the scan with fakes.
type PageFetcher interface {
	FetchPage(ctx context.Context, descriptor *catalog.ResourceDescriptor, params map[string]string, cursor string, limit int) (*iot.Page, error)
	ThingGroupsForThing(ctx context.Context, thingName string) ([]byte, error)
	ThingShadow(ctx context.Context, thingName string) ([]byte, error)
}

var _ PageFetcher = (*iot.Client)(nil)

type state int

const (
	stateUnopened state = iota
	stateOpen
	stateExhausted
	stateClosed
	stateFailed
)

// Scan is a forward-only cursor over one resource kind. A Scan is owned by
// a single caller: Open, Next and Close must be invoked sequentially, and
// no two scans share pagination state even when they target the same kind.
type Scan struct {
	fetcher PageFetcher
	id      string

	state      state
	descriptor *catalog.ResourceDescriptor
	plan       *physical.PushdownPlan
	residual   execution.Formula
	mapper     *RowMapper

	buffer   []*execution.Record
	bufIndex int
	// page keeps the raw values of the buffered page alive.
	page      *iot.Page
	cursor    string
	morePages bool
	// remaining is the row budget left, -1 when unlimited.
	remaining int
	needsAux  bool
}

func NewScan(fetcher PageFetcher) *Scan {
	return &Scan{
		fetcher: fetcher,
		id:      ulid.MustNew(ulid.Timestamp(time.Now()), crand.Reader).String(),
	}
}

// Open plans the pushdown once and initializes fresh pagination state.
// requestedColumns may be nil for all columns.
func (s *Scan) Open(descriptor *catalog.ResourceDescriptor, requestedColumns []string, predicate physical.Formula, sortFields []physical.SortField, limit int) error {
	if s.state != stateUnopened {
		return errors.Wrapf(ErrInvalidState, "open called on scan %s in state %s", s.id, s.state)
	}

	for _, column := range requestedColumns {
		if _, ok := descriptor.Column(column); !ok {
			return errors.Errorf("no column %s in %s", column, descriptor.Table)
		}
	}

	plan := physical.Plan(descriptor, requestedColumns, predicate, sortFields, limit)
	residual, err := plan.Residual.Materialize()
	if err != nil {
		return errors.Wrap(err, "couldn't materialize residual predicate")
	}

	s.descriptor = descriptor
	s.plan = plan
	s.residual = residual
	s.mapper = NewRowMapper(descriptor, requestedColumns)
	s.cursor = ""
	s.morePages = true
	s.remaining = -1
	if limit > 0 {
		s.remaining = limit
	}
	for _, column := range descriptor.Columns {
		if column.Aux != catalog.AuxNone && s.mapper.Requested(column.Name) {
			s.needsAux = true
		}
	}
	s.state = stateOpen
	return nil
}

// Next returns the next row surviving the residual predicate, fetching
// further remote pages transparently. It returns ErrEndOfStream exactly
// once, when the limit is reached or the remote listing is exhausted.
func (s *Scan) Next(ctx context.Context) (*execution.Record, error) {
	if s.state != stateOpen {
		return nil, errors.Wrapf(ErrInvalidState, "next called on scan %s in state %s", s.id, s.state)
	}

	for {
		if s.remaining == 0 {
			s.state = stateExhausted
			return nil, execution.ErrEndOfStream
		}

		if s.bufIndex < len(s.buffer) {
			record := s.buffer[s.bufIndex]
			s.bufIndex++

			matches, err := s.residual.Evaluate(record)
			if err != nil {
				return nil, s.fail(errors.Wrap(err, "couldn't evaluate residual predicate"))
			}
			if !matches {
				continue
			}
			if s.remaining > 0 {
				s.remaining--
			}
			return record, nil
		}

		if !s.morePages {
			s.state = stateExhausted
			return nil, execution.ErrEndOfStream
		}

		if err := s.fetchNextPage(ctx); err != nil {
			return nil, s.fail(err)
		}
	}
}

func (s *Scan) fetchNextPage(ctx context.Context) error {
	limitHint := 0
	if s.plan.RemoteLimit > 0 {
		limitHint = s.remaining
	}

	page, err := s.fetcher.FetchPage(ctx, s.descriptor, s.plan.RemoteParams, s.cursor, limitHint)
	if err != nil {
		return errors.Wrap(err, "couldn't fetch page")
	}
	// The cursor is consumed; at most one new cursor comes back.
	s.cursor = page.NextToken
	s.morePages = page.NextToken != ""

	buffer := make([]*execution.Record, 0, len(page.Records))
	for _, raw := range page.Records {
		aux, err := s.fetchAux(ctx, raw)
		if err != nil {
			return err
		}
		record, err := s.mapper.MapRow(raw, aux)
		if err != nil {
			return err
		}
		buffer = append(buffer, record)
	}
	s.page = page
	s.buffer = buffer
	s.bufIndex = 0
	return nil
}

// fetchAux runs the per-row auxiliary calls for requested aux columns.
// Only things have them: group membership and the shadow document.
func (s *Scan) fetchAux(ctx context.Context, raw *fastjson.Value) (map[string]thingsql.Value, error) {
	if !s.needsAux {
		return nil, nil
	}
	thingName := string(raw.GetStringBytes("thingName"))
	if thingName == "" {
		// The mapper will report the missing key column.
		return nil, nil
	}

	aux := make(map[string]thingsql.Value)
	for _, column := range s.descriptor.Columns {
		if !s.mapper.Requested(column.Name) {
			continue
		}
		switch column.Aux {
		case catalog.AuxThingGroups:
			groups, err := s.fetcher.ThingGroupsForThing(ctx, thingName)
			if err != nil {
				return nil, errors.Wrapf(err, "couldn't fetch groups for thing %s", thingName)
			}
			aux[column.Name] = thingsql.NewJson(groups)
		case catalog.AuxThingShadow:
			shadow, err := s.fetcher.ThingShadow(ctx, thingName)
			if err != nil {
				return nil, errors.Wrapf(err, "couldn't fetch shadow for thing %s", thingName)
			}
			if shadow == nil {
				aux[column.Name] = thingsql.NewNull()
			} else {
				aux[column.Name] = thingsql.NewJson(shadow)
			}
		}
	}
	return aux, nil
}

// Close releases buffered state. Valid in any state; calling it again is
// a no-op.
func (s *Scan) Close() error {
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	s.buffer = nil
	s.page = nil
	s.cursor = ""
	s.morePages = false
	return nil
}

// Plan exposes the immutable pushdown plan of an opened scan.
func (s *Scan) Plan() *physical.PushdownPlan {
	return s.plan
}

// ID is the unique identifier of this scan, used in error context.
func (s *Scan) ID() string {
	return s.id
}

func (s *Scan) fail(err error) error {
	s.state = stateFailed
	return errors.Wrapf(err, "scan %s failed", s.id)
}

func (s state) String() string {
	switch s {
	case stateUnopened:
		return "unopened"
	case stateOpen:
		return "open"
	case stateExhausted:
		return "exhausted"
	case stateClosed:
		return "closed"
	case stateFailed:
		return "failed"
	}
	return "invalid"
}

var _ execution.RecordStream = (*Scan)(nil)
