package api

import (
	"context"
	"net/http"
	"time"

	"hermandad.org/internal/domain"
)

// ProcessionPatch carries only the fields being edited.
type ProcessionPatch struct {
	Name        *string    `json:"nombre,omitempty"`
	Description *string    `json:"descripcion,omitempty"`
	TotalTurns  *int       `json:"totalTurnos,omitempty"`
	Date        *time.Time `json:"fecha,omitempty"`
}

func (c *Client) CreateProcession(ctx context.Context, p domain.Procession) (domain.Procession, error) {
	cl := newCall(http.MethodPost, "procesion/addProcesiones")
	cl.body = p
	var out struct {
		Procession *domain.Procession `json:"procesion"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return domain.Procession{}, err
	}
	if out.Procession == nil {
		return p, nil
	}
	return *out.Procession, nil
}

func (c *Client) ListProcessions(ctx context.Context) ([]domain.Procession, error) {
	var out struct {
		Processions []domain.Procession `json:"procesiones"`
	}
	if err := c.do(ctx, newCall(http.MethodGet, "procesion/getProcesiones"), &out); err != nil {
		return nil, err
	}
	return out.Processions, nil
}

func (c *Client) GetProcession(ctx context.Context, id string) (domain.Procession, error) {
	var out struct {
		Procession domain.Procession `json:"procesion"`
	}
	err := c.do(ctx, newCall(http.MethodGet, "procesion/getProcesionesById/:id", id), &out)
	return out.Procession, err
}

func (c *Client) UpdateProcession(ctx context.Context, id string, patch ProcessionPatch) error {
	cl := newCall(http.MethodPut, "procesion/updateProcesion/:id", id)
	cl.body = patch
	return c.do(ctx, cl, nil)
}

func (c *Client) DeleteProcession(ctx context.Context, id string) error {
	return c.do(ctx, newCall(http.MethodDelete, "procesion/deleteProcesion/:id", id), nil)
}
