package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/carousel/internal/plugin"
	"github.com/ayusman/carousel/internal/store"
)

func TestAPI_IconWorkflow(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	fake := newFakeCarousel()
	srv := New(Config{Store: st, Carousel: fake})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Create two icons, the second with an action.
	resp, err := client.Post(ts.URL+"/api/icons", "application/json",
		bytes.NewBufferString(`{"caption":"Map","image":"https://example.com/map.png"}`))
	if err != nil {
		t.Fatalf("POST /api/icons error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var first struct {
		ID       string `json:"id"`
		Caption  string `json:"caption"`
		Position int    `json:"position"`
	}
	json.NewDecoder(resp.Body).Decode(&first)
	resp.Body.Close()

	if first.ID == "" || first.Caption != "Map" || first.Position != 0 {
		t.Fatalf("created icon = %+v", first)
	}

	resp, _ = client.Post(ts.URL+"/api/icons", "application/json", bytes.NewBufferString(
		`{"caption":"Music","image":"music.png","action":{"plugin":"launcher","action":"media-play-pause"}}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST with action status = %d", resp.StatusCode)
	}
	var second struct {
		ID       string `json:"id"`
		Position int    `json:"position"`
		Action   *struct {
			Plugin  string `json:"plugin"`
			Action  string `json:"action"`
			Enabled bool   `json:"enabled"`
		} `json:"action"`
	}
	json.NewDecoder(resp.Body).Decode(&second)
	resp.Body.Close()

	if second.Position != 1 || second.Action == nil || second.Action.Plugin != "launcher" || !second.Action.Enabled {
		t.Fatalf("created icon with action = %+v", second)
	}

	// 2. List icons in belt order.
	resp, _ = client.Get(ts.URL + "/api/icons")
	var listed struct {
		Icons []struct {
			ID     string          `json:"id"`
			Action json.RawMessage `json:"action"`
		} `json:"icons"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Icons) != 2 || listed.Icons[0].ID != first.ID || listed.Icons[1].ID != second.ID {
		t.Fatalf("listed icons = %+v", listed.Icons)
	}
	if listed.Icons[0].Action != nil {
		t.Errorf("first icon has action %s", listed.Icons[0].Action)
	}

	// 3. Update the caption and bind an action.
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/icons/"+first.ID, bytes.NewBufferString(
		`{"caption":"Maps","action":{"plugin":"launcher","action":"open-url","params":{"url":"https://maps.example.com"}}}`))
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	icon, err := st.Icons().GetByID(first.ID)
	if err != nil || icon.Caption != "Maps" || icon.Image != "https://example.com/map.png" {
		t.Errorf("stored icon after PUT = %+v (%v)", icon, err)
	}
	action, err := st.Actions().GetByIconID(first.ID)
	if err != nil || action == nil || action.ActionName != "open-url" {
		t.Fatalf("stored action after PUT = %+v (%v)", action, err)
	}
	var params map[string]string
	json.Unmarshal(action.Params, &params)
	if params["url"] != "https://maps.example.com" {
		t.Errorf("action params = %s", action.Params)
	}

	// 4. Remove the action.
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/icons/"+first.ID+"/action", nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE action status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = client.Get(ts.URL + "/api/icons/" + first.ID + "/action")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET removed action status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	// 5. Delete one icon; the last one is protected.
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/icons/"+second.ID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/icons/"+first.ID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("DELETE last icon status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	resp.Body.Close()

	resp, _ = client.Get(ts.URL + "/api/icons/" + second.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()

	// create, create, update, delete action, delete icon
	if got := fake.Reloads(); got != 5 {
		t.Errorf("reloads = %d, want 5", got)
	}
}

func TestAPI_Selections(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	for _, caption := range []string{"Map", "Music", "Video"} {
		if err := st.Selections().Record(&store.Selection{Caption: caption, Success: true}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	ts := httptest.NewServer(New(Config{Store: st}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/selections?limit=2")
	if err != nil {
		t.Fatalf("GET /api/selections error = %v", err)
	}
	defer resp.Body.Close()

	var got struct {
		Selections []struct {
			Caption string `json:"caption"`
		} `json:"selections"`
	}
	json.NewDecoder(resp.Body).Decode(&got)

	if len(got.Selections) != 2 || got.Selections[0].Caption != "Video" {
		t.Errorf("selections = %+v, want the two newest", got.Selections)
	}

	resp2, _ := ts.Client().Get(ts.URL + "/api/selections?limit=abc")
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d, want 400", resp2.StatusCode)
	}
	resp2.Body.Close()
}

func TestAPI_Plugins(t *testing.T) {
	dir := t.TempDir()
	m := plugin.NewManager(dir)

	ts := httptest.NewServer(New(Config{Plugins: m}))
	defer ts.Close()

	pluginDir := filepath.Join(dir, "launcher")
	os.MkdirAll(pluginDir, 0o755)
	manifest := `{"name":"launcher","version":"1.0.0","executable":"launcher","actions":["open-url","open-app"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, plugin.ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	// POST rescans the directory.
	resp, err := ts.Client().Post(ts.URL+"/api/plugins", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/plugins error = %v", err)
	}
	defer resp.Body.Close()

	var got struct {
		Plugins []struct {
			Name    string   `json:"name"`
			Actions []string `json:"actions"`
		} `json:"plugins"`
	}
	json.NewDecoder(resp.Body).Decode(&got)

	if len(got.Plugins) != 1 || got.Plugins[0].Name != "launcher" {
		t.Fatalf("plugins = %+v", got.Plugins)
	}
	if acts := got.Plugins[0].Actions; len(acts) != 2 || acts[0] != "open-app" {
		t.Errorf("actions = %v, want sorted", acts)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
