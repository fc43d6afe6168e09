package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/habedi/reauth/auth"
	"github.com/habedi/reauth/client"
	"github.com/habedi/reauth/pkg/clierr"
	"github.com/habedi/reauth/pkg/hasher"
	"github.com/habedi/reauth/pkg/pool"
	"github.com/habedi/reauth/pkg/validation"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type requestOptions struct {
	method      string
	data        string
	headers     []string
	repeat      int
	concurrency int
	output      string
	hashAlgo    string
	rateLimit   int64
	timeout     time.Duration
	fail        bool
}

type requestResult struct {
	status  int
	size    int64
	elapsed time.Duration
}

// requestCmd sends a request through the authenticating client.
func requestCmd() *cobra.Command {
	opts := &requestOptions{}

	cmd := &cobra.Command{
		Use:   "request [url]",
		Short: "Send an authenticated HTTP request",
		Long: "Send an HTTP request carrying the stored access token. A 401 answer triggers one token " +
			"refresh and a single retry of the request.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			if err := opts.validate(url); err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}
			body, err := opts.body()
			if err != nil {
				return clierr.New(clierr.Validation, "Failed to read request body", err)
			}

			a, cleanup, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			hc := client.New(a.svc, client.WithTimeout(opts.timeout))
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if opts.repeat > 1 {
				return runRepeated(ctx, cmd, hc, opts, url, body)
			}
			return runSingle(ctx, cmd, hc, opts, url, body)
		},
	}

	cmd.Flags().StringVarP(&opts.method, "method", "X", "", "HTTP method (default GET, or POST when --data is set)")
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "Request body; prefix with @ to read it from a file")
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, "Extra header as 'Name: value' (repeatable)")
	cmd.Flags().IntVarP(&opts.repeat, "repeat", "n", 1, "Number of times to send the request")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 4, "Number of requests in flight when repeating")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the response body to this file")
	cmd.Flags().StringVar(&opts.hashAlgo, "hash", "", "Print a digest of the response body [md5, sha1, sha256, sha512]")
	cmd.Flags().Int64Var(&opts.rateLimit, "rate-limit", 0, "Limit saving to this many bytes per second (0 means unlimited)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Timeout for each request")
	cmd.Flags().BoolVarP(&opts.fail, "fail", "f", false, "Exit with an error when the server answers with a status of 400 or above")

	return cmd
}

func (o *requestOptions) validate(url string) error {
	if err := validation.ValidateURL("url", url); err != nil {
		return err
	}
	if o.method == "" {
		o.method = http.MethodGet
		if o.data != "" {
			o.method = http.MethodPost
		}
	}
	o.method = strings.ToUpper(o.method)
	if err := validation.ValidateMethod(o.method); err != nil {
		return err
	}
	for _, h := range o.headers {
		if _, _, err := validation.ParseHeader(h); err != nil {
			return err
		}
	}
	if err := validation.ValidateRepeat(o.repeat); err != nil {
		return err
	}
	if err := validation.ValidateConcurrency(o.concurrency); err != nil {
		return err
	}
	if o.repeat > 1 && o.output != "" {
		return fmt.Errorf("--output cannot be combined with --repeat")
	}
	if o.hashAlgo != "" && !hasher.IsValidHashAlgo(o.hashAlgo) {
		return fmt.Errorf("unsupported hash algorithm: %s", o.hashAlgo)
	}
	if o.timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", o.timeout)
	}
	return nil
}

func (o *requestOptions) body() ([]byte, error) {
	if o.data == "" {
		return nil, nil
	}
	if path, ok := strings.CutPrefix(o.data, "@"); ok {
		return os.ReadFile(path)
	}
	return []byte(o.data), nil
}

func (o *requestOptions) newRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, o.method, url, reader)
	if err != nil {
		return nil, err
	}
	for _, h := range o.headers {
		name, value, _ := validation.ParseHeader(h)
		req.Header.Add(name, value)
	}
	return req, nil
}

func runSingle(ctx context.Context, cmd *cobra.Command, hc *http.Client, opts *requestOptions, url string, body []byte) error {
	req, err := opts.newRequest(ctx, url, body)
	if err != nil {
		return clierr.New(clierr.Validation, "Failed to build request", err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return requestError(err)
	}
	cmd.PrintErrln(resp.Proto, resp.Status)

	if opts.output != "" {
		progress := io.Writer(nil)
		if isTerminal() {
			progress = cmd.ErrOrStderr()
		}
		n, err := client.SaveResponse(ctx, resp, opts.output, client.SaveOptions{
			Progress: progress,
			Limiter:  client.NewRateLimiter(opts.rateLimit),
		})
		if err != nil {
			return clierr.New(clierr.Transport, "Failed to save response", err)
		}
		cmd.PrintErrf("Saved %s to %s\n", formatBytes(n), opts.output)
		if opts.hashAlgo != "" {
			sum, err := hasher.GenerateHash(opts.output, opts.hashAlgo)
			if err != nil {
				return clierr.New(clierr.Internal, "Failed to hash response", err)
			}
			cmd.Printf("%s  %s\n", sum, opts.output)
		}
	} else {
		defer resp.Body.Close()
		var sink io.Writer = cmd.OutOrStdout()
		h, _ := hasher.New(opts.hashAlgo)
		if h != nil {
			sink = io.MultiWriter(sink, h)
		}
		if _, err := io.Copy(sink, resp.Body); err != nil {
			return clierr.New(clierr.Transport, "Failed to read response", err)
		}
		if h != nil {
			cmd.PrintErrf("%s: %x\n", strings.ToLower(opts.hashAlgo), h.Sum(nil))
		}
	}

	if opts.fail && resp.StatusCode >= 400 {
		return clierr.New(clierr.Transport, fmt.Sprintf("Server answered %s", resp.Status), nil)
	}
	return nil
}

func runRepeated(ctx context.Context, cmd *cobra.Command, hc *http.Client, opts *requestOptions, url string, body []byte) error {
	indexes := make([]int, opts.repeat)
	for i := range indexes {
		indexes[i] = i + 1
	}

	results, errs := pool.Map(ctx, indexes, opts.concurrency, func(ctx context.Context, i int) (requestResult, error) {
		req, err := opts.newRequest(ctx, url, body)
		if err != nil {
			return requestResult{}, err
		}
		start := time.Now()
		resp, err := hc.Do(req)
		if err != nil {
			log.Warn().Err(err).Int("request", i).Msg("Request failed")
			return requestResult{}, err
		}
		defer resp.Body.Close()
		n, err := io.Copy(io.Discard, resp.Body)
		if err != nil {
			return requestResult{}, err
		}
		return requestResult{status: resp.StatusCode, size: n, elapsed: time.Since(start)}, nil
	})

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"#", "Status", "Size", "Time"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)

	var failedStatus int
	for i, r := range results {
		if r.status == 0 {
			table.Append([]string{fmt.Sprintf("%d", i+1), "error", "-", "-"})
			continue
		}
		if r.status >= 400 {
			failedStatus++
		}
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", r.status),
			formatBytes(r.size),
			r.elapsed.Round(time.Millisecond).String(),
		})
	}
	table.Render()
	cmd.Printf("Sent %d requests: %d failed, %d with an error status.\n", opts.repeat, len(errs), failedStatus)

	if len(errs) > 0 {
		return requestError(errors.Join(errs...))
	}
	if opts.fail && failedStatus > 0 {
		return clierr.New(clierr.Transport, fmt.Sprintf("%d requests got an error status", failedStatus), nil)
	}
	return nil
}

func requestError(err error) error {
	if errors.Is(err, auth.ErrSignInRequired) {
		log.Warn().Msg("Refresh failed; sign-in required")
	}
	return clierr.FromRequest("Request failed", err)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
