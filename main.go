package main

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/fabimass/ai-chatbot-multiagent/agent/agents/apiagent"
	"github.com/fabimass/ai-chatbot-multiagent/agent/agents/csvagent"
	"github.com/fabimass/ai-chatbot-multiagent/agent/agents/greeter"
	"github.com/fabimass/ai-chatbot-multiagent/agent/agents/rag"
	"github.com/fabimass/ai-chatbot-multiagent/agent/agents/sqlagent"
	"github.com/fabimass/ai-chatbot-multiagent/agent/agents/summarizer"
	"github.com/fabimass/ai-chatbot-multiagent/agent/agents/supervisor"
	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
	"github.com/fabimass/ai-chatbot-multiagent/agent/graph"
	llmx "github.com/fabimass/ai-chatbot-multiagent/agent/llm"
	"github.com/fabimass/ai-chatbot-multiagent/agent/session"
	"github.com/fabimass/ai-chatbot-multiagent/pkg/blobstore"
	configx "github.com/fabimass/ai-chatbot-multiagent/pkg/config"
	logx "github.com/fabimass/ai-chatbot-multiagent/pkg/logger"
	_ "github.com/fabimass/ai-chatbot-multiagent/pkg/logger/autoload"
	openrouterx "github.com/fabimass/ai-chatbot-multiagent/pkg/openrouter"
	"github.com/fabimass/ai-chatbot-multiagent/pkg/sandbox"
	"github.com/fabimass/ai-chatbot-multiagent/pkg/specfetch"
	"github.com/fabimass/ai-chatbot-multiagent/pkg/sqldb"
	"github.com/fabimass/ai-chatbot-multiagent/pkg/vectorsearch"
	"github.com/fabimass/ai-chatbot-multiagent/server"
)

// AppConfig toggles which capability agents join the roster.
type AppConfig struct {
	EnableRag bool `envconfig:"ENABLE_RAG" split_words:"true" default:"true"`
	EnableSql bool `envconfig:"ENABLE_SQL" split_words:"true" default:"true"`
	EnableCsv bool `envconfig:"ENABLE_CSV" split_words:"true" default:"true"`
	EnableApi bool `envconfig:"ENABLE_API" split_words:"true" default:"true"`
}

func main() {
	ctx := context.Background()
	log := logx.For("main")

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	if err := llmCfg.Validate(); err != nil {
		panic(err)
	}

	modelFor := func(role contractx.AgentRole) einomodel.BaseChatModel {
		builder := llmCfg.OpenRouterFor(role)
		m, err := builder.New(ctx)
		if err != nil {
			panic(fmt.Errorf("create %s model: %w", role, err))
		}
		return m
	}

	var (
		agents []contractx.Agent
		checks = map[string]contractx.HealthChecker{}
	)

	checks["llm"] = openrouterx.NewHealthChecker(llmCfg.OpenRouterFor(contractx.RoleSupervisor))

	if appCfg.EnableRag {
		searchCfg := configx.MustNew[vectorsearch.Config]("SEARCH")
		index, err := vectorsearch.New(*searchCfg)
		if err != nil {
			panic(fmt.Errorf("create vector search client: %w", err))
		}
		ragCfg := configx.MustNew[rag.Config]("RAG")
		ragAgent, err := rag.New(ctx, modelFor(contractx.RoleRag), index, *ragCfg)
		if err != nil {
			panic(fmt.Errorf("create rag agent: %w", err))
		}
		agents = append(agents, ragAgent)
		checks[ragAgent.Name()] = ragAgent
	}

	if appCfg.EnableSql {
		dbCfg := configx.MustNew[sqldb.Config]("DB")
		db, err := sqldb.New(*dbCfg)
		if err != nil {
			panic(fmt.Errorf("create database client: %w", err))
		}
		sqlCfg := configx.MustNew[sqlagent.Config]("SQL")
		sqlAgent, err := sqlagent.New(ctx, modelFor(contractx.RoleSql), db, *sqlCfg)
		if err != nil {
			panic(fmt.Errorf("create sql agent: %w", err))
		}
		agents = append(agents, sqlAgent)
		checks[sqlAgent.Name()] = sqlAgent
	}

	if appCfg.EnableCsv {
		blobCfg := configx.MustNew[blobstore.Config]("BLOB")
		store, err := blobstore.New(*blobCfg)
		if err != nil {
			panic(fmt.Errorf("create blob store client: %w", err))
		}
		sandboxCfg := configx.MustNew[sandbox.Config]("SANDBOX")
		csvCfg := configx.MustNew[csvagent.Config]("CSV")
		if csvCfg.Location == "" {
			csvCfg.Location = store.Endpoint() + "/" + csvCfg.Container
		}
		csvAgent, err := csvagent.New(ctx, modelFor(contractx.RoleCsv), store, sandbox.New(*sandboxCfg), *csvCfg)
		if err != nil {
			panic(fmt.Errorf("create csv agent: %w", err))
		}
		agents = append(agents, csvAgent)
		checks[csvAgent.Name()] = csvAgent
	}

	if appCfg.EnableApi {
		fetchCfg := configx.MustNew[specfetch.Config]("SPEC")
		sandboxCfg := configx.MustNew[sandbox.Config]("SANDBOX")
		apiCfg := configx.MustNew[apiagent.Config]("API")
		apiAgent, err := apiagent.New(ctx, modelFor(contractx.RoleApi), specfetch.New(*fetchCfg), sandbox.New(*sandboxCfg), *apiCfg)
		if err != nil {
			panic(fmt.Errorf("create api agent: %w", err))
		}
		agents = append(agents, apiAgent)
	}

	if len(agents) == 0 {
		panic("no capability agents enabled")
	}

	roster := make([]contractx.RosterEntry, len(agents))
	for i, ag := range agents {
		roster[i] = contractx.RosterEntry{Name: ag.Name(), Directive: ag.Directive()}
	}

	sup, err := supervisor.New(ctx, modelFor(contractx.RoleSupervisor), roster)
	if err != nil {
		panic(fmt.Errorf("create supervisor: %w", err))
	}
	sum, err := summarizer.New(ctx, modelFor(contractx.RoleSummarizer))
	if err != nil {
		panic(fmt.Errorf("create summarizer: %w", err))
	}
	greet, err := greeter.New(ctx, modelFor(contractx.RoleGreeter), roster)
	if err != nil {
		panic(fmt.Errorf("create greeter: %w", err))
	}

	qaGraph, err := graph.New(ctx, sup, sum, agents)
	if err != nil {
		panic(fmt.Errorf("compile graph: %w", err))
	}

	sessionDBCfg := configx.MustNew[sqldb.Config]("SESSION_DB")
	sessionDB, err := sqldb.OpenDB(*sessionDBCfg)
	if err != nil {
		panic(fmt.Errorf("open session database: %w", err))
	}
	store, err := session.NewPostgresStore(sessionDB)
	if err != nil {
		panic(fmt.Errorf("create session store: %w", err))
	}
	if err := store.EnsureSchema(ctx); err != nil {
		panic(fmt.Errorf("ensure session schema: %w", err))
	}

	srv, err := server.New(qaGraph, greet, store, checks)
	if err != nil {
		panic(fmt.Errorf("create server: %w", err))
	}

	serverCfg := configx.MustNew[server.Config]("SERVER")
	log.Info().Int("agents", len(agents)).Msg("starting")
	if err := srv.ListenAndServe(*serverCfg); err != nil {
		panic(err)
	}
}
