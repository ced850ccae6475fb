package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"securecast/internal/app"
	"securecast/internal/wire"
)

func TestDefaultConfig(t *testing.T) {
	c := app.DefaultConfig()
	if c.HandshakePort != 9999 || c.RepairPort != 10000 {
		t.Fatalf("ports %d/%d", c.HandshakePort, c.RepairPort)
	}
	if c.Group.String() != "224.1.1.1:5007" || c.GroupName != "Default Group Name" {
		t.Fatalf("group %s %q", c.Group, c.GroupName)
	}
	if c.ChunkSize != 1024 || c.RepairRetries != 5 || c.RepairRetryDelay.D() != 2*time.Second {
		t.Fatalf("defaults %+v", c)
	}
	if c.HandshakeAddr() != ":9999" {
		t.Fatalf("HandshakeAddr = %q", c.HandshakeAddr())
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "group": {"host": "239.0.0.7", "port": 6000},
  "repair_window": "5s",
  "repair_mode": "sequential",
  "integrity": "keyed",
  "chunk_size": 512
}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	c, err := app.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Group.Host != "239.0.0.7" || c.Group.Port != 6000 || c.ChunkSize != 512 {
		t.Fatalf("config %+v", c)
	}
	if c.RepairWindow.D() != 5*time.Second || c.RepairMode != "sequential" || c.Integrity != "keyed" {
		t.Fatalf("config %+v", c)
	}
	if c.RepairPort != 10000 {
		t.Fatalf("unset field lost its default: %d", c.RepairPort)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	c, err := app.LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.HandshakePort != 9999 {
		t.Fatalf("defaults not applied")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []app.Config{
		{RepairMode: "threaded"},
		{RepairFraming: "chunked"},
		{Integrity: "md5"},
		{HandshakePort: 70000},
		{ChunkSize: 65000},
		{ChunkSize: 30000},
		{ChunkSize: 2000, ReceiveBuffer: 1500},
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	c := app.Config{}
	c.Group.Host = "10.0.0.1"
	if err := c.Validate(); err == nil {
		t.Fatal("unicast group accepted")
	}

	c = app.Config{ChunkSize: 30000, ReceiveBuffer: wire.MaxDatagramSize}
	if err := c.Validate(); err != nil {
		t.Fatalf("large chunk with a large buffer: %v", err)
	}
}

func TestNew_BuildsServices(t *testing.T) {
	a, err := app.New(app.Config{Home: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Sender == nil || a.Receiver == nil || a.Spool == nil {
		t.Fatalf("incomplete app %+v", a)
	}
}
