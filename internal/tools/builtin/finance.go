package builtin

import (
	"context"
	"fmt"

	"github.com/virattt/dexter-sub002/internal/tools"
)

// Finance tools are pure functions `args -> string` per spec §1: the
// specific data-provider integration (a market-data vendor, SEC EDGAR,
// etc.) is an external collaborator. These stubs implement the
// tools.Tool contract end to end (name, schema, capability gating,
// invoke) so the agent loop and tool-context store have something real to
// drive; the body of Invoke is a placeholder a concrete deployment
// replaces with an actual HTTP call.

// QuoteArgs is the parameter contract for the stock-quote tool.
type QuoteArgs struct {
	Ticker string `json:"ticker" jsonschema:"required,description=Stock ticker symbol, e.g. AAPL"`
}

type quoteTool struct{}

// NewQuoteTool returns the stock-quote lookup tool.
func NewQuoteTool() tools.Tool { return quoteTool{} }

func (quoteTool) Name() string        { return "get_stock_quote" }
func (quoteTool) Description() string { return "Fetch the latest price quote for a stock ticker." }
func (quoteTool) Capabilities() []string { return nil }
func (quoteTool) JSONSchema() map[string]any { return schemaFor(QuoteArgs{}) }

func (quoteTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	var a QuoteArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", fmt.Errorf("get_stock_quote: %w", err)
	}
	if a.Ticker == "" {
		return "", fmt.Errorf("get_stock_quote: ticker is required")
	}
	return fmt.Sprintf("quote unavailable for %s in this deployment (external market-data provider not configured)", a.Ticker), nil
}

// FilingArgs is the parameter contract for the SEC-filing lookup tool.
type FilingArgs struct {
	Ticker   string `json:"ticker" jsonschema:"required,description=Stock ticker symbol"`
	FormType string `json:"form_type,omitempty" jsonschema:"description=SEC form type, e.g. 10-K"`
}

type filingTool struct{}

// NewFilingTool returns the SEC-filing lookup tool. It requires
// SEC_EDGAR_USER_AGENT (spec §6 Environment variables) before it is
// registered at all.
func NewFilingTool() tools.Tool { return filingTool{} }

func (filingTool) Name() string          { return "get_sec_filing" }
func (filingTool) Description() string   { return "Look up the most recent SEC filing of a given type for a ticker." }
func (filingTool) Capabilities() []string { return []string{"SEC_EDGAR_USER_AGENT"} }
func (filingTool) JSONSchema() map[string]any { return schemaFor(FilingArgs{}) }

func (filingTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	var a FilingArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", fmt.Errorf("get_sec_filing: %w", err)
	}
	if a.Ticker == "" {
		return "", fmt.Errorf("get_sec_filing: ticker is required")
	}
	form := a.FormType
	if form == "" {
		form = "10-K"
	}
	return fmt.Sprintf("no cached %s filing for %s (external EDGAR client not configured)", form, a.Ticker), nil
}
