package store

import "testing"

func TestSQLiteStoreContract(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("sqlite open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	testDocumentStoreContract(t, s)
}
