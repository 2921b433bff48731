package providers

import (
	_ "github.com/stake-plus/validai/src/ai/openai"
	_ "github.com/stake-plus/validai/src/ai/perplexity"
)
