package main

import (
	"github.com/spf13/cobra"

	"github.com/jordanlanch/feedbackhub/pkg/models"
	"github.com/jordanlanch/feedbackhub/pkg/testdata"
)

func buildBucketCmd() *cobra.Command {
	var traffic bool
	cmd := &cobra.Command{
		Use:   "bucket [scope] [visitor-id...]",
		Short: "Print the bucket of visitors for a flag key or experiment id",
		Long: `Print the bucket in [0,100) of each visitor.

With --traffic the scope is treated as an experiment id and the bucket of the
traffic allocation gate is printed as well.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBucket(cmd, args[0], args[1:], traffic)
		},
	}
	cmd.Flags().BoolVar(&traffic, "traffic", false, "Also print the traffic gate bucket")
	return cmd
}

func buildAssignCmd() *cobra.Command {
	var (
		variants   []string
		allocation int
	)
	cmd := &cobra.Command{
		Use:   "assign [experiment-id] [visitor-id...]",
		Short: "Resolve variants offline from key=weight pairs",
		Example: `  flagctl assign exp-1 visitor-1 visitor-2 --variant control=50 --variant a=30 --variant b=20
  flagctl assign exp-1 visitor-1 --variant control=50 --variant a=50 --allocation 80`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssign(cmd, args[0], args[1:], variants, allocation)
		},
	}
	cmd.Flags().StringArrayVar(&variants, "variant", nil, "Variant as key=weight, in bucketing order (repeatable)")
	cmd.Flags().IntVar(&allocation, "allocation", 100, "Traffic allocation percentage")
	_ = cmd.MarkFlagRequired("variant")
	return cmd
}

func buildMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts)
		},
	}
}

func buildSeedCmd(opts *globalOptions) *cobra.Command {
	cfg := testdata.DefaultProjectConfig("demo")
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert a demo project with random flags and running experiments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.ProjectID, "project", cfg.ProjectID, "Project ID")
	cmd.Flags().IntVar(&cfg.Flags, "flags", cfg.Flags, "Number of flags")
	cmd.Flags().IntVar(&cfg.Experiments, "experiments", cfg.Experiments, "Number of experiments")
	cmd.Flags().IntVar(&cfg.Variants, "variants", cfg.Variants, "Variants per experiment")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 0, "Random seed (0 picks one)")
	return cmd
}

func buildExperimentCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Manage the experiment lifecycle",
		Long: `Move experiments through draft -> running -> paused -> completed and
inspect how visitors were assigned.`,
	}
	cmd.AddCommand(
		buildTransitionCmd(opts, "start", "Start a draft experiment", models.StatusRunning),
		buildTransitionCmd(opts, "pause", "Pause a running experiment", models.StatusPaused),
		buildTransitionCmd(opts, "resume", "Resume a paused experiment", models.StatusRunning),
		buildTransitionCmd(opts, "complete", "Complete an experiment", models.StatusCompleted),
		buildStatsCmd(opts),
	)
	return cmd
}

func buildTransitionCmd(opts *globalOptions, use, short string, to models.ExperimentStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [experiment-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd, opts, args[0], to)
		},
	}
}

func buildStatsCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats [experiment-id]",
		Short: "Show assignment counts per variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, opts, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func buildCacheCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the Redis definition cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Drop every cached flag and experiment definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheFlush(cmd, opts)
		},
	})
	return cmd
}
