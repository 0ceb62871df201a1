// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTail_KeepsMostRecentLines(t *testing.T) {
	tail := NewTail(3)
	for _, s := range []string{"a\n", "b\n", "c\n", "d\n"} {
		tail.Write([]byte(s))
	}

	got := tail.Lines(0)
	want := []string{"b", "c", "d"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Lines() = %v, want %v", got, want)
	}

	if got := tail.Lines(2); strings.Join(got, ",") != "c,d" {
		t.Errorf("Lines(2) = %v, want [c d]", got)
	}
}

func TestTail_PartialWrites(t *testing.T) {
	tail := NewTail(4)
	tail.Write([]byte("hel"))
	tail.Write([]byte("lo\nwor"))

	got := tail.Lines(0)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("Lines() = %v, want [hello]", got)
	}

	tail.Write([]byte("ld\n"))
	got = tail.Lines(0)
	if len(got) != 2 || got[1] != "world" {
		t.Errorf("Lines() = %v, want [hello world]", got)
	}
}

func TestLogger_LevelsAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	EnableDebug(false)

	log := New("Test")
	log.Info("hello %d", 1)
	log.Warn("careful")
	log.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "[Test] INFO: hello 1") {
		t.Errorf("missing info line: %q", out)
	}
	if !strings.Contains(out, "[Test] WARN: careful") {
		t.Errorf("missing warn line: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written while debug disabled: %q", out)
	}

	EnableDebug(true)
	defer EnableDebug(false)
	log.Debug("shown")
	if !strings.Contains(buf.String(), "[Test] DEBUG: shown") {
		t.Errorf("missing debug line: %q", buf.String())
	}
}

func TestLogger_ErrorHasCaller(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	New("Test").Error("boom")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Errorf("error line missing caller: %q", buf.String())
	}
}

func TestWebService_Toggle(t *testing.T) {
	SetOutput(&bytes.Buffer{})
	EnableDebug(false)
	defer EnableDebug(false)

	srv := WebService()

	req := httptest.NewRequest(http.MethodGet, "/toggle", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /toggle status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}

	req = httptest.NewRequest(http.MethodPost, "/toggle", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("POST /toggle status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if !IsDebug() {
		t.Error("debug should be enabled after toggle")
	}
}

func TestWebService_RendersTail(t *testing.T) {
	SetOutput(&bytes.Buffer{})
	New("Page").Info("visible line")

	rec := httptest.NewRecorder()
	WebService().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(rec.Body.String(), "[Page] INFO: visible line") {
		t.Errorf("page does not contain log line")
	}
}
