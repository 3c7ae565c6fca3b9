package main

import (
	"encoding/json"
	"io"
	"os"
	"provisioner/pkg/client"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	url    string
	apiKey string
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.url, client.WithAPIKey(o.apiKey))
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "provisionerctl",
		Short:        "Create and delete H2O instances on YARN",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.url, "url", envOr("PROVISIONER_URL", "http://localhost:8080"), "provisioner API base URL")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv("PROVISIONER_API_KEY"), "bearer token for the API")

	root.AddCommand(newCreateCmd(opts), newDeleteCmd(opts))
	return root
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		nodes     int
		memory    string
		kerberos  bool
		conf      map[string]string
		userToken string
	)

	cmd := &cobra.Command{
		Use:   "create <instance-id>",
		Short: "Start an H2O cluster and print its connection info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := opts.client().CreateInstance(cmd.Context(), args[0], nodes, memory, kerberos, client.CreateRequest{
				YarnConfig: conf,
				UserToken:  userToken,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), inst)
		},
	}

	cmd.Flags().IntVar(&nodes, "nodes", 1, "number of H2O nodes")
	cmd.Flags().StringVar(&memory, "memory", "1g", "memory per node, e.g. 256m or 4g")
	cmd.Flags().BoolVar(&kerberos, "kerberos", true, "log in with kerberos before launching")
	cmd.Flags().StringToStringVar(&conf, "conf", nil, "hadoop configuration entry key=value (repeatable)")
	cmd.Flags().StringVar(&userToken, "user-token", "", "opaque token forwarded to the service")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var (
		kerberos bool
		conf     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "delete <instance-id>",
		Short: "Stop the H2O cluster of an instance and print the killed job id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := opts.client().DeleteInstance(cmd.Context(), args[0], kerberos, conf)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), jobID)
		},
	}

	cmd.Flags().BoolVar(&kerberos, "kerberos", true, "log in with kerberos before querying the cluster")
	cmd.Flags().StringToStringVar(&conf, "conf", nil, "hadoop configuration entry key=value (repeatable)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
