package orchestrator

import (
	"github.com/cloudwego/eino/components/tool"

	"chartmind/config"
)

// DefaultTools returns the full tool set wired to the given stores, in
// the order tools are presented to the model.
func DefaultTools(store DataStore, runner QueryRunner, cfg config.Config, logFunc func(string)) []tool.InvokableTool {
	return []tool.InvokableTool{
		NewListConnectionsTool(store, logFunc),
		NewGetSchemaTool(store, runner, logFunc),
		NewGenerateQueryTool(logFunc),
		NewValidateQueryTool(logFunc),
		NewRunQueryTool(store, runner, cfg.QueryRowLimit, cfg.QueryTimeoutSecs, logFunc),
		NewSummarizeTool(logFunc),
		NewSuggestChartTool(logFunc),
		NewCreateDatasetTool(store, logFunc),
		NewUpdateDatasetTool(store, logFunc),
		NewCreateChartTool(store, logFunc),
		NewUpdateChartTool(store, logFunc),
		NewDisambiguateTool(),
	}
}
