package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voiced/pkg/types"
)

// voicectl is a thin client for the voiced admin API.

var (
	baseURL string
	client  = &http.Client{Timeout: 10 * time.Second}
)

func main() {
	root := &cobra.Command{
		Use:           "voicectl",
		Short:         "Control client for the voiced daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "server", "http://127.0.0.1:8080", "voiced admin API base URL")

	root.AddCommand(
		statusCmd(),
		skillsCmd(),
		eventsCmd(),
		sayCmd(),
		queryCmd(),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon state, languages and sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var st types.StatusResponse
			if err := getJSON("/status", &st); err != nil {
				return err
			}
			fmt.Printf("state: %s  sessions: %d  uptime: %ds\n", st.State, st.Sessions, st.UptimeSeconds)
			for _, l := range st.Languages {
				fmt.Printf("  %-8s nlu=%-10s pool=%d/%d\n", l.Lang, l.NluState, l.PoolIdle, l.PoolCapacity)
			}
			for _, s := range st.Skills {
				fmt.Printf("  skill %s\n", s)
			}
			for _, s := range st.FailedSkills {
				fmt.Printf("  skill %s (failed)\n", s)
			}
			return nil
		},
	}
}

func skillsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skills",
		Short: "List loaded and failed skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Skills []types.SkillStatus `json:"skills"`
			}
			if err := getJSON("/skills", &resp); err != nil {
				return err
			}
			for _, s := range resp.Skills {
				if s.Loaded {
					fmt.Printf("%-20s loaded\n", s.Name)
				} else {
					fmt.Printf("%-20s failed: %s\n", s.Name, s.Error)
				}
			}
			return nil
		},
	}
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Show recent pipeline events",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Events []map[string]any `json:"events"`
			}
			if err := getJSON("/events", &resp); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for _, ev := range resp.Events {
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func sayCmd() *cobra.Command {
	var device, lang string
	cmd := &cobra.Command{
		Use:   "say <text>",
		Short: "Inject a text request as if a satellite sent it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(types.SayRequest{DeviceID: device, Text: args[0], Lang: lang})
			if err != nil {
				return err
			}
			resp, err := client.Post(baseURL+"/say", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusAccepted {
				return apiError(resp)
			}
			fmt.Println("accepted")
			return nil
		},
	}
	cmd.Flags().StringVar(&device, "device", "voicectl", "Device id to attribute the request to")
	cmd.Flags().StringVar(&lang, "lang", "", "Locale tag (server default when empty)")
	return cmd
}

func queryCmd() *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "query <skill> <name>",
		Short: "Execute a skill-registered query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.QueryRequest{Skill: args[0], Name: args[1], Params: map[string]string{}}
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("bad param %q, want key=value", p)
				}
				req.Params[k] = v
			}
			body, err := json.Marshal(req)
			if err != nil {
				return err
			}
			resp, err := client.Post(baseURL+"/query", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return apiError(resp)
			}
			var qr types.QueryResponse
			if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
				return err
			}
			for k, v := range qr.Results {
				fmt.Printf("%s=%s\n", k, v)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "Query parameter as key=value (repeatable)")
	return cmd
}

func getJSON(path string, out any) error {
	resp, err := client.Get(baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er types.ErrorResponse
	if json.Unmarshal(b, &er) == nil && er.Error != "" {
		return fmt.Errorf("server: %s (%d)", er.Error, er.Code)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}
