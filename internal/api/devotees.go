package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"hermandad.org/internal/domain"
)

// DevoteeInput is the body of devoto/addDevoto and devoto/updateDevoto.
// Turns lists the commission turn ids selected at registration, all of
// them belonging to Procession.
type DevoteeInput struct {
	FirstName  string   `json:"nombre"`
	LastName   string   `json:"apellido"`
	DPI        string   `json:"DPI"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"telefono,omitempty"`
	Address    string   `json:"direccion,omitempty"`
	Procession string   `json:"procesion,omitempty"`
	Turns      []string `json:"turnos,omitempty"`
}

// DevoteePage is one page of a paginated devotee listing.
type DevoteePage struct {
	Devotees   []domain.Devotee `json:"devotos"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
}

func (c *Client) CreateDevotee(ctx context.Context, in DevoteeInput) (domain.Devotee, error) {
	cl := newCall(http.MethodPost, "devoto/addDevoto")
	cl.body = in
	var out struct {
		Devotee *domain.Devotee `json:"devoto"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return domain.Devotee{}, err
	}
	if out.Devotee == nil {
		return domain.Devotee{FirstName: in.FirstName, LastName: in.LastName, DPI: in.DPI}, nil
	}
	return *out.Devotee, nil
}

func (c *Client) ListDevotees(ctx context.Context) ([]domain.Devotee, error) {
	return c.devotees(ctx, newCall(http.MethodGet, "devoto/getDevotos"))
}

func (c *Client) GetDevotee(ctx context.Context, id string) (domain.Devotee, error) {
	var out struct {
		Devotee domain.Devotee `json:"devoto"`
	}
	err := c.do(ctx, newCall(http.MethodGet, "devoto/getDevotoById/:id", id), &out)
	return out.Devotee, err
}

func (c *Client) UpdateDevotee(ctx context.Context, id string, in DevoteeInput) error {
	cl := newCall(http.MethodPut, "devoto/updateDevoto/:id", id)
	cl.body = in
	return c.do(ctx, cl, nil)
}

func (c *Client) DeleteDevotee(ctx context.Context, id string) error {
	return c.do(ctx, newCall(http.MethodDelete, "devoto/deleteDevoto/:id", id), nil)
}

// DevoteesByTurn lists the devotees assigned to a turn.
func (c *Client) DevoteesByTurn(ctx context.Context, turnID string) ([]domain.Devotee, error) {
	return c.devotees(ctx, newCall(http.MethodGet, "devoto/devotosByTurno/:id", turnID))
}

// SearchDevotees runs the server-side search.
func (c *Client) SearchDevotees(ctx context.Context, q string) ([]domain.Devotee, error) {
	cl := newCall(http.MethodGet, "devoto/search")
	cl.query = url.Values{"q": {q}}
	return c.devotees(ctx, cl)
}

func (c *Client) DevoteesPage(ctx context.Context, page, limit int) (DevoteePage, error) {
	cl := newCall(http.MethodGet, "devoto/getDevotosPaginacion")
	cl.query = pageQuery(page, limit)
	var out DevoteePage
	err := c.do(ctx, cl, &out)
	return out, err
}

func (c *Client) SearchDevoteesPage(ctx context.Context, q string, page, limit int) (DevoteePage, error) {
	cl := newCall(http.MethodGet, "devoto/search/devotos/")
	cl.query = pageQuery(page, limit)
	cl.query.Set("q", q)
	var out DevoteePage
	err := c.do(ctx, cl, &out)
	return out, err
}

func (c *Client) devotees(ctx context.Context, cl call) ([]domain.Devotee, error) {
	var out struct {
		Devotees []domain.Devotee `json:"devotos"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return out.Devotees, nil
}

func pageQuery(page, limit int) url.Values {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
}
