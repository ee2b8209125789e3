// Package testutil provides shared test helpers for knowledge base documents and catalogs.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/askwiki/internal/catalog"
)

// HelpdeskHTML is a small wiki export with five articles under level-2 headings.
const HelpdeskHTML = `<html><head><title>Helpdesk</title></head><body>
<h1>Helpdesk</h1>
<h2>Reset password</h2><p>Use the forgot password link on the login page.</p>
<h2>Billing cycle</h2><p>Invoices are issued monthly on the first.</p>
<h2>VPN access</h2><p>Install the client and log in with your domain account. Error 809 means the port is blocked.</p>
<h2>Printer jam</h2><p>Open the tray and remove the stuck paper, then press resume.</p>
<h2>Login page is blank</h2><p>Clear the browser cache and reload the login page.</p>
</body></html>`

// WriteDocument writes content to name inside a fresh temporary directory
// and returns the file path.
func WriteDocument(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestCatalog creates a temporary catalog database that is automatically cleaned up.
func TestCatalog(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "askwiki-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(context.Background(), dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
