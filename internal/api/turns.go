package api

import (
	"context"
	"net/http"

	"hermandad.org/internal/domain"
)

func (c *Client) CreateTurn(ctx context.Context, t domain.Turn) error {
	cl := newCall(http.MethodPost, "turno/addTurno")
	cl.body = t
	return c.do(ctx, cl, nil)
}

func (c *Client) ListTurns(ctx context.Context) ([]domain.Turn, error) {
	return c.turns(ctx, newCall(http.MethodGet, "turno/getTurnos"))
}

func (c *Client) GetTurn(ctx context.Context, id string) (domain.Turn, error) {
	var out struct {
		Turn domain.Turn `json:"turno"`
	}
	err := c.do(ctx, newCall(http.MethodGet, "turno/getTurnoById/:id", id), &out)
	return out.Turn, err
}

func (c *Client) UpdateTurn(ctx context.Context, id string, t domain.Turn) error {
	cl := newCall(http.MethodPut, "turno/updateTurno/:id", id)
	cl.body = t
	return c.do(ctx, cl, nil)
}

func (c *Client) DeleteTurn(ctx context.Context, id string) error {
	return c.do(ctx, newCall(http.MethodDelete, "turno/deleteTurno/:id", id), nil)
}

// TurnsByProcession lists the turns that belong to one procession.
func (c *Client) TurnsByProcession(ctx context.Context, processionID string) ([]domain.Turn, error) {
	return c.turns(ctx, newCall(http.MethodGet, "turno/getTurnosByProcesion/:id", processionID))
}

func (c *Client) turns(ctx context.Context, cl call) ([]domain.Turn, error) {
	var out struct {
		Turns []domain.Turn `json:"turnos"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return out.Turns, nil
}
