// Package client implements the "stats", "drain" and "resize" subcommands: thin
// HTTP clients against a running ringcache server, mirroring dKV's
// cmd/kv subcommands that talk to a running dKV server instead of
// embedding a store.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/Forensiq/indexedRingBuffer/cmd/util"
)

var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the running server's stats snapshot",
	RunE:  runStats,
}

var DrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Trigger a full drain on the running server",
	RunE:  runDrain,
}

var ResizeCmd = &cobra.Command{
	Use:   "resize [newSize]",
	Short: "Resize the running server's ring capacity",
	Args:  cobra.ExactArgs(1),
	RunE:  runResize,
}

func init() {
	for _, cmd := range []*cobra.Command{StatsCmd, DrainCmd, ResizeCmd} {
		cmd.PersistentFlags().String("server", "http://localhost:8080", cmdUtil.WrapString("Base URL of the ringcache server"))
		cmd.PersistentFlags().Int("timeout", 10, cmdUtil.WrapString("Request timeout in seconds"))
	}
}

func httpClient(cmd *cobra.Command) *http.Client {
	_ = viper.BindPFlags(cmd.Flags())
	return &http.Client{Timeout: time.Duration(viper.GetInt("timeout")) * time.Second}
}

func runStats(cmd *cobra.Command, _ []string) error {
	c := httpClient(cmd)
	resp, err := c.Get(viper.GetString("server") + "/stats")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var stats map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("decoding stats response: %w", err)
	}
	enc, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(enc))
	return nil
}

func runDrain(cmd *cobra.Command, _ []string) error {
	c := httpClient(cmd)
	resp, err := c.Post(viper.GetString("server")+"/drain", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, body)
	}
	fmt.Println("drain accepted")
	return nil
}

func runResize(cmd *cobra.Command, args []string) error {
	newSize, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("newSize must be a number: %w", err)
	}
	body, err := json.Marshal(map[string]int64{"newSize": newSize})
	if err != nil {
		return err
	}

	c := httpClient(cmd)
	resp, err := c.Post(viper.GetString("server")+"/resize", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, respBody)
	}
	fmt.Printf("resized to %d\n", newSize)
	return nil
}
