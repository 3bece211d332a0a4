package storage

import (
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
)

// Clause is one typed condition of a WHERE list. Values always travel as bind arguments.
type Clause interface {
	render(b *binder) string
}

type binder struct {
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

type statusIn []model.Status

func (c statusIn) render(b *binder) string {
	raw := make([]string, len(c))
	for i, s := range c {
		raw[i] = string(s)
	}
	return "status = ANY(" + b.bind(raw) + ")"
}

type serviceIs string

func (c serviceIs) render(b *binder) string { return "service_id = " + b.bind(string(c)) }

type startsAtOrAfter time.Time

func (c startsAtOrAfter) render(b *binder) string { return "start_time >= " + b.bind(time.Time(c)) }

type startsBefore time.Time

func (c startsBefore) render(b *binder) string { return "start_time < " + b.bind(time.Time(c)) }

type search string

func (c search) render(b *binder) string {
	p := b.bind("%" + escapeLike(string(c)) + "%")
	return "(client_name ILIKE " + p + " OR client_email ILIKE " + p + " OR client_phone ILIKE " + p + ")"
}

func StatusIn(statuses ...model.Status) Clause { return statusIn(statuses) }
func ServiceIs(id string) Clause               { return serviceIs(id) }
func StartsAtOrAfter(t time.Time) Clause       { return startsAtOrAfter(t) }
func StartsBefore(t time.Time) Clause          { return startsBefore(t) }
func Search(term string) Clause                { return search(term) }

// Where renders clauses joined by AND, returning "" when there are none.
func Where(clauses ...Clause) (string, []any) {
	b := &binder{}
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c == nil {
			continue
		}
		parts = append(parts, c.render(b))
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(parts, " AND "), b.args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type AppointmentFilter struct {
	Statuses  []model.Status
	ServiceID string
	From      *time.Time
	To        *time.Time
	Search    string
	Limit     int
	Offset    int
}

func (f AppointmentFilter) Clauses() []Clause {
	var out []Clause
	if len(f.Statuses) > 0 {
		out = append(out, StatusIn(f.Statuses...))
	}
	if f.ServiceID != "" {
		out = append(out, ServiceIs(f.ServiceID))
	}
	if f.From != nil {
		out = append(out, StartsAtOrAfter(*f.From))
	}
	if f.To != nil {
		out = append(out, StartsBefore(*f.To))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		out = append(out, Search(s))
	}
	return out
}

func (f AppointmentFilter) page() (limit, offset int) {
	limit, offset = f.Limit, f.Offset
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
