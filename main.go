package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	auditx "github.com/finsight-labs/finsight/agent/audit"
	capabilityx "github.com/finsight-labs/finsight/agent/capability"
	catalogx "github.com/finsight-labs/finsight/agent/catalog"
	contractx "github.com/finsight-labs/finsight/agent/contract"
	datasetx "github.com/finsight-labs/finsight/agent/dataset"
	gatex "github.com/finsight-labs/finsight/agent/gate"
	llmx "github.com/finsight-labs/finsight/agent/llm"
	orchestratorx "github.com/finsight-labs/finsight/agent/orchestrator"
	promptx "github.com/finsight-labs/finsight/agent/prompt"
	reasoningx "github.com/finsight-labs/finsight/agent/reasoning"
	transcriptx "github.com/finsight-labs/finsight/agent/transcript"
	configx "github.com/finsight-labs/finsight/pkg/config"
	_ "github.com/finsight-labs/finsight/pkg/logger/autoload"
	openrouterx "github.com/finsight-labs/finsight/pkg/openrouter"
)

type AppConfig struct {
	SubjectID string `envconfig:"SUBJECT_ID" split_words:"true" default:"demo"`
	Role      string `envconfig:"ROLE" split_words:"true" default:"client"`
	Tier      string `envconfig:"TIER" split_words:"true" default:"normal"`

	DatasetDir string `envconfig:"DATASET_DIR" split_words:"true"`

	TranscriptBackend string `envconfig:"TRANSCRIPT_BACKEND" split_words:"true" default:"sqlite"`
	TranscriptPath    string `envconfig:"TRANSCRIPT_PATH" split_words:"true" default:"finsight.db"`
	TrailBackend      string `envconfig:"TRAIL_BACKEND" split_words:"true" default:"memory"`

	ReasoningTimeout  time.Duration `envconfig:"REASONING_TIMEOUT" split_words:"true" default:"30s"`
	CapabilityTimeout time.Duration `envconfig:"CAPABILITY_TIMEOUT" split_words:"true" default:"10s"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("FINSIGHT")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}

	identity, err := buildIdentity(*appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid identity config")
	}

	data, err := datasetx.Load(appCfg.DatasetDir)
	if err != nil {
		log.Fatal().Err(err).Msg("load dataset")
	}

	store, err := buildTranscriptStore(ctx, *appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open transcript store")
	}

	trail, err := buildTrail(*appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open rationale trail")
	}

	reasoningCfg := llmCfg.OpenRouterReasoning()
	chatModel, err := reasoningCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("build chat model")
	}
	engine, err := reasoningx.NewEngine(ctx, chatModel, promptx.Analyst())
	if err != nil {
		log.Fatal().Err(err).Msg("build reasoning engine")
	}

	narrativeCfg := llmCfg.OpenRouterNarrative()
	var synth capabilityx.Synthesizer
	if client := openrouterx.NewClient(narrativeCfg); client != nil {
		synth, err = llmx.NewSynthesizer(client, narrativeCfg.Model)
		if err != nil {
			log.Fatal().Err(err).Msg("build synthesizer")
		}
	}

	executor := capabilityx.NewSet(data, synth)
	gate := gatex.New(catalogx.New())

	service, err := orchestratorx.New(gate, engine, executor, trail, store, log.Logger, orchestratorx.Config{
		ReasoningTimeout:  appCfg.ReasoningTimeout,
		CapabilityTimeout: appCfg.CapabilityTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	runREPL(ctx, service, identity)
}

func buildIdentity(cfg AppConfig) (contractx.IdentityContext, error) {
	identity := contractx.IdentityContext{
		SubjectID: strings.TrimSpace(cfg.SubjectID),
		Role:      contractx.Role(strings.TrimSpace(cfg.Role)),
		Tier:      contractx.Tier(strings.TrimSpace(cfg.Tier)),
	}
	switch identity.Role {
	case contractx.RoleClient, contractx.RoleExecutive:
	default:
		return contractx.IdentityContext{}, fmt.Errorf("unknown role %q", cfg.Role)
	}
	if identity.Role == contractx.RoleExecutive {
		identity.Tier = contractx.TierNone
	}
	return identity, nil
}

func buildTranscriptStore(ctx context.Context, cfg AppConfig) (contractx.TranscriptStore, error) {
	switch cfg.TranscriptBackend {
	case "memory":
		return transcriptx.NewMemoryStore(), nil
	case "sqlite":
		return transcriptx.NewSQLiteStore(cfg.TranscriptPath)
	case "postgres":
		pgCfg := configx.MustNew[transcriptx.PostgresConfig]("POSTGRES")
		return transcriptx.NewPostgresStore(ctx, *pgCfg)
	default:
		return nil, fmt.Errorf("unknown transcript backend %q", cfg.TranscriptBackend)
	}
}

func buildTrail(cfg AppConfig) (contractx.Trail, error) {
	switch cfg.TrailBackend {
	case "memory":
		return auditx.NewMemoryTrail(), nil
	case "upstash":
		upstashCfg := configx.MustNew[auditx.UpstashConfig]("UPSTASH")
		return auditx.NewUpstashTrail(*upstashCfg)
	default:
		return nil, fmt.Errorf("unknown trail backend %q", cfg.TrailBackend)
	}
}

func runREPL(ctx context.Context, service *orchestratorx.Service, identity contractx.IdentityContext) {
	fmt.Printf("finsight analyst - subject=%s role=%s", identity.SubjectID, identity.Role)
	if identity.Tier != contractx.TierNone {
		fmt.Printf(" tier=%s", identity.Tier)
	}
	fmt.Println()
	fmt.Printf("%d capabilities available. Commands: /why, /tools, /quit\n", len(service.Manifest(identity)))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit", line == "/exit":
			return
		case line == "/why":
			printLatestRationale(ctx, service, identity.SubjectID)
			continue
		case line == "/tools":
			for _, d := range service.Manifest(identity) {
				fmt.Printf("  %-40s %s\n", d.Name, d.Description)
			}
			continue
		}

		result, err := service.HandleTurn(ctx, identity, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(result.Reply)
		if !result.Persisted {
			fmt.Println("(note: this turn could not be saved to history)")
		}
	}
}

func printLatestRationale(ctx context.Context, service *orchestratorx.Service, subjectID string) {
	rec, ok, err := service.LatestRationale(ctx, subjectID)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if !ok {
		fmt.Println("no turns recorded yet")
		return
	}
	capability := rec.Capability
	if capability == "" {
		capability = "no capability"
	}
	fmt.Printf("WHY [turn %d, %s]: %s\n", rec.TurnSeq, capability, rec.Rationale)
}
