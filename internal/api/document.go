package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
)

const maxDocumentBytes = 20 << 20

// Document is a binary payload such as an invoice or inventory PDF.
type Document struct {
	Name        string
	ContentType string
	Body        []byte
}

func (c *Client) document(ctx context.Context, cl call, name string) (Document, error) {
	cl.accept = "application/pdf"
	resp, err := c.send(ctx, cl)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	media, _, perr := mime.ParseMediaType(ct)
	if perr != nil || media != "application/pdf" {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return Document{}, &Error{
			Kind:     KindDecode,
			Method:   cl.method,
			Endpoint: cl.endpoint,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("expected application/pdf, got %q", ct),
		}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return Document{}, &Error{Kind: KindTransport, Method: cl.method, Endpoint: cl.endpoint, Status: resp.StatusCode, Cause: err}
	}
	if len(body) > maxDocumentBytes {
		return Document{}, &Error{
			Kind:     KindDecode,
			Method:   cl.method,
			Endpoint: cl.endpoint,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("document exceeds limit of %d bytes", maxDocumentBytes),
		}
	}
	return Document{Name: name, ContentType: media, Body: body}, nil
}

// InvoicePDF downloads the printable invoice for an invoice number.
func (c *Client) InvoicePDF(ctx context.Context, number string) (Document, error) {
	cl := newCall(http.MethodGet, "compra/generarFacturaPDF/:noFactura", number)
	return c.document(ctx, cl, "factura-"+number+".pdf")
}

// InventoryPDF downloads the turn inventory of a procession.
func (c *Client) InventoryPDF(ctx context.Context, processionID string) (Document, error) {
	cl := newCall(http.MethodGet, "turno/descargarInventario/:id", processionID)
	return c.document(ctx, cl, "Turnos_Procesion_"+processionID+".pdf")
}
