package extraction

import "context"

// MockExtractor returns canned statement data for testing.
type MockExtractor struct {
	Statement *StatementData
	Err       error

	ExtractCalled   bool
	LastContentType string
	LastDataLen     int
}

var _ Extractor = (*MockExtractor)(nil)

func (m *MockExtractor) ExtractStatement(_ context.Context, data []byte, contentType string) (*StatementData, error) {
	m.ExtractCalled = true
	m.LastContentType = contentType
	m.LastDataLen = len(data)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Statement, nil
}
