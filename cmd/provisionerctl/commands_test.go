package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCreateCommand(t *testing.T) {
	t.Parallel()
	var gotQuery string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"hostname":"qwerty.com","port":"80","username":"u","password":"p"}`))
	}))
	defer server.Close()

	out, err := execute(t, "create", "abc", "--url", server.URL, "--nodes", "4", "--memory", "256m",
		"--kerberos=false", "--conf", "fs.defaultFS=hdfs://nn")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if gotQuery != "nodesCount=4&memory=256m&kerberos=off" {
		t.Errorf("Unexpected query %s", gotQuery)
	}
	conf, _ := gotBody["yarnConfig"].(map[string]any)
	if conf["fs.defaultFS"] != "hdfs://nn" {
		t.Errorf("Expected conf in body, got %v", gotBody)
	}
	if !strings.Contains(out, `"hostname": "qwerty.com"`) {
		t.Errorf("Expected instance JSON in output, got %s", out)
	}
}

func TestDeleteCommand(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/instances/abc/delete" || r.URL.Query().Get("kerberos") != "on" {
			t.Errorf("Unexpected request %s", r.URL)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Expected bearer auth, got %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`"application_1_0001"`))
	}))
	defer server.Close()

	out, err := execute(t, "delete", "abc", "--url", server.URL, "--api-key", "secret")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if strings.TrimSpace(out) != `"application_1_0001"` {
		t.Errorf("Expected job id output, got %s", out)
	}
}

func TestDeleteCommand_NotFound(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"job not found"}`))
	}))
	defer server.Close()

	_, err := execute(t, "delete", "abc", "--url", server.URL)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Expected 404 error, got %v", err)
	}
}

func TestCreateCommand_RequiresID(t *testing.T) {
	t.Parallel()
	if _, err := execute(t, "create"); err == nil {
		t.Error("Expected error without an instance id")
	}
}
