package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"voxelfort.ai/internal/protocol"
	"voxelfort.ai/internal/sim/world/logic/ids"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	doAdmin(http.MethodGet, adminURL(*baseURL, "/admin/v1/structures", nil), 5*time.Second)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	doAdmin(http.MethodPost, adminURL(*baseURL, "/admin/v1/snapshot", nil), 10*time.Second)
}

func hostileCmd(args []string) {
	fs := flag.NewFlagSet("hostile", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	structureID := fs.String("structure", "", "structure id (required)")
	hostile := fs.Bool("hostile", true, "hostiles adjacent (false clears)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*structureID) == "" {
		fmt.Fprintln(os.Stderr, "missing -structure")
		os.Exit(2)
	}
	if _, ok := ids.ParseStructureID(strings.TrimSpace(*structureID)); !ok {
		fmt.Fprintln(os.Stderr, "malformed structure id:", *structureID)
		os.Exit(2)
	}
	q := url.Values{}
	q.Set("structure", strings.TrimSpace(*structureID))
	q.Set("hostile", fmt.Sprint(*hostile))
	doAdmin(http.MethodPost, adminURL(*baseURL, "/admin/v1/hostile", q), 5*time.Second)
}

func adminURL(base, path string, q url.Values) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func doAdmin(method, u string, timeout time.Duration) {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		if r, err := protocol.DecodeResponse(b); err == nil && r.Code != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", r.Code, r.Error)
		} else {
			fmt.Fprintln(os.Stderr, strings.TrimSpace(string(b)))
		}
		os.Exit(1)
	}
	fmt.Println(strings.TrimSpace(string(b)))
}
