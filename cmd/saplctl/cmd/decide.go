package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/sapl-go/sapl"
	"github.com/sapl-go/sapl/internal/config"
	"github.com/sapl-go/sapl/internal/otelsink"
	"github.com/sapl-go/sapl/internal/target"
)

var (
	policiesPath     string
	subscriptionPath string
	enableTrace      bool
	enableMetrics    bool
	decideTimeout    time.Duration
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Evaluate one subscription against a fixture policy set",
	Long: `decide loads a fixture policy set and a subscription, constructs a
PolicyDecisionPoint from them, samples one decision with DecideOnce, and
prints the resulting AuthorizationDecision as JSON.

The policy fixture is a JSON array of objects shaped like:

  [
    {"id": "p1", "entitlement": "permit", "where": {"field": "subject", "equals": "alice"}},
    {"id": "p2", "entitlement": "deny"}
  ]

"where" is optional (omitting it means the policy always matches) and
supports only a single field-equality test against a dotted path into the
subscription (e.g. "resource.owner"). This is not SAPL source — saplctl
bundles no grammar parser, by design.

The subscription fixture is a JSON object with "subject"/"action"/
"resource"/"environment" keys, each an arbitrary JSON value.`,
	RunE: runDecide,
}

func init() {
	decideCmd.Flags().StringVar(&policiesPath, "policies", "", "path to a policy fixture JSON file (required)")
	decideCmd.Flags().StringVar(&subscriptionPath, "subscription", "", "path to a subscription fixture JSON file (required)")
	decideCmd.Flags().BoolVar(&enableTrace, "trace", false, "record evaluation provenance via the stdout OTel exporter")
	decideCmd.Flags().BoolVar(&enableMetrics, "metrics", false, "instrument the decision with Prometheus counters and print them")
	decideCmd.Flags().DurationVar(&decideTimeout, "timeout", 5*time.Second, "deadline for the decision")
	_ = decideCmd.MarkFlagRequired("policies")
	_ = decideCmd.MarkFlagRequired("subscription")
	rootCmd.AddCommand(decideCmd)
}

func runDecide(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	algo, err := cfg.Engine.CombiningAlgorithm.CombiningAlgorithm()
	if err != nil {
		return fmt.Errorf("combining algorithm: %w", err)
	}
	strategy, err := parseTargetStrategy(cfg.Engine.TargetStrategy)
	if err != nil {
		return fmt.Errorf("target strategy: %w", err)
	}

	docs, err := loadPolicies(policiesPath)
	if err != nil {
		return err
	}
	sub, err := loadSubscription(subscriptionPath)
	if err != nil {
		return err
	}

	catalog := sapl.NewMemoryCatalog()
	for _, doc := range docs {
		catalog.Put(doc)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), decideTimeout)
	defer cancel()

	opts := []sapl.Option{sapl.WithTargetStrategy(strategy)}

	if enableTrace {
		tp, err := otelsink.NewTracerProvider()
		if err != nil {
			return fmt.Errorf("trace provider: %w", err)
		}
		defer func() { _ = tp.Shutdown(ctx) }()
		otel.SetTracerProvider(tp)
		opts = append(opts, sapl.WithTraceSink(otelsink.NewSink(ctx, "saplctl")))
	}

	var reg *prometheus.Registry
	var m *sapl.Metrics
	if enableMetrics {
		reg = prometheus.NewRegistry()
		m = sapl.NewMetrics(reg)
		opts = append(opts, sapl.WithMetrics(m))
	}

	pdp, err := sapl.New(catalog, algo, opts...)
	if err != nil {
		return fmt.Errorf("build policy decision point: %w", err)
	}
	defer pdp.Close()

	got, err := pdp.DecideOnce(ctx, sub)
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}

	out, err := json.MarshalIndent(got, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	fmt.Println(string(out))

	if enableMetrics {
		printMetrics(reg)
	}
	return nil
}

func parseTargetStrategy(s string) (sapl.Strategy, error) {
	switch s {
	case "", "linear":
		return sapl.LinearEvaluator, nil
	case "predicate_sharing":
		return sapl.PredicateSharingIndex, nil
	default:
		return target.LinearEvaluator, fmt.Errorf("unknown target strategy %q", s)
	}
}

func printMetrics(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Printf("metrics: gather failed: %v\n", err)
		return
	}
	fmt.Println("---")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				fmt.Printf("%s%s %v\n", mf.GetName(), labelsString(m.GetLabel()), m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				fmt.Printf("%s%s %v\n", mf.GetName(), labelsString(m.GetLabel()), m.GetGauge().GetValue())
			}
		}
	}
}

func labelsString(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	s := "{"
	for i, l := range labels {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
	}
	return s + "}"
}
