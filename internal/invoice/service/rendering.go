package service

import (
	"context"
	"io"

	"github.com/bwmarrin/snowflake"
)

// Render produces the printable PDF for the invoice, headed with the
// organization's name.
func (s *Service) Render(ctx context.Context, orgID, invoiceID snowflake.ID) (io.Reader, error) {
	invoice, err := s.mustFind(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}

	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	orgName := ""
	if org != nil {
		orgName = org.Name
	}

	return s.renderer.RenderInvoice(invoice, orgName)
}
