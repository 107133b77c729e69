package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vigil-labs/launcher/internal/config"
	"github.com/vigil-labs/launcher/pkg/client"
)

// newClient builds a bridge client from --api-url, or from the [server]
// section of the config when the flag is empty.
func newClient(flags *GlobalFlags) *client.Client {
	return client.New(client.Config{BaseURL: bridgeURL(flags), Timeout: flags.Timeout})
}

func bridgeURL(flags *GlobalFlags) string {
	if flags.APIUrl != "" {
		return flags.APIUrl
	}
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return client.DefaultConfig().BaseURL
	}
	host := cfg.Server.Listen
	if strings.HasPrefix(host, ":") || strings.HasPrefix(host, "0.0.0.0:") {
		host = "127.0.0.1:" + host[strings.LastIndexByte(host, ':')+1:]
	}
	return "http://" + host + cfg.Server.BasePath
}

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(b))
}
