package testutil

import (
	"context"
	"os"
	"sync"

	"github.com/surfbill/surfbill/internal/domain/invoice"
	ierr "github.com/surfbill/surfbill/internal/errors"
)

// MockPDFGenerator implements pdf.Generator and records render calls
type MockPDFGenerator struct {
	mu       sync.Mutex
	rendered []string
	failNext bool
}

// NewMockPDFGenerator creates a new mock PDF generator
func NewMockPDFGenerator() *MockPDFGenerator {
	return &MockPDFGenerator{}
}

func (m *MockPDFGenerator) Render(ctx context.Context, inv *invoice.Invoice, outputPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext {
		m.failNext = false
		return ierr.NewError("mock render failure").
			WithHint("rendering failed").
			Mark(ierr.ErrRender)
	}

	if err := os.WriteFile(outputPath, []byte("%PDF-mock"), 0o644); err != nil {
		return err
	}
	m.rendered = append(m.rendered, inv.Number)
	return nil
}

// FailNext makes the next Render call return ErrRender
func (m *MockPDFGenerator) FailNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

// Rendered returns the invoice numbers rendered so far
func (m *MockPDFGenerator) Rendered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.rendered...)
}
