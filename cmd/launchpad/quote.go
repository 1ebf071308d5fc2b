package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/curve"
)

var (
	quoteSupply string
	quoteStart  string
	quoteTarget string
	quoteSold   string
	quoteAmount string
	quoteSide   string
	quoteFeeBps uint16
	quoteRows   int
)

func newQuoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a trade on a bonding curve without touching any store",
		Args:  cobra.ExactArgs(0),
		RunE:  quoteFunc,
	}
	cmd.Flags().StringVar(&quoteSupply, "supply", "1000000000", "total supply in whole tokens")
	cmd.Flags().StringVar(&quoteStart, "start-mcap", "25", "opening market cap in SOL")
	cmd.Flags().StringVar(&quoteTarget, "target", "460", "funds to raise before graduation in SOL")
	cmd.Flags().StringVar(&quoteSold, "sold", "0", "tokens already sold")
	cmd.Flags().StringVar(&quoteAmount, "amount", "0", "tokens to buy or sell")
	cmd.Flags().StringVar(&quoteSide, "side", "buy", "buy or sell")
	cmd.Flags().Uint16Var(&quoteFeeBps, "fee-bps", 100, "trading fee in basis points")
	cmd.Flags().IntVar(&quoteRows, "table", 0, "also print the curve sampled at this many points")
	return cmd
}

func parseTokens(flag, raw string) (uint64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("--%s: invalid amount %q", flag, raw)
	}
	v, err := curve.FromTokens(d)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", flag, err)
	}
	return v, nil
}

func quoteFunc(*cobra.Command, []string) error {
	supply, err := parseTokens("supply", quoteSupply)
	if err != nil {
		return err
	}
	sold, err := parseTokens("sold", quoteSold)
	if err != nil {
		return err
	}
	amount, err := parseTokens("amount", quoteAmount)
	if err != nil {
		return err
	}
	start, err := config.ParseSOL(quoteStart)
	if err != nil {
		return fmt.Errorf("--start-mcap: %w", err)
	}
	target, err := config.ParseSOL(quoteTarget)
	if err != nil {
		return fmt.Errorf("--target: %w", err)
	}
	if quoteFeeBps > uint16(curve.BpsDenominator) {
		return fmt.Errorf("--fee-bps: %d above %d", quoteFeeBps, curve.BpsDenominator)
	}

	params, err := curve.NewParams(supply, start, target)
	if err != nil {
		return err
	}

	var base, fee, total, after uint64
	switch quoteSide {
	case "buy":
		if base, err = params.QuoteBuy(sold, amount); err != nil {
			return err
		}
		if fee, total, err = curve.BuyTotal(base, quoteFeeBps); err != nil {
			return err
		}
		after = sold + amount
	case "sell":
		if base, err = params.QuoteSell(sold, amount); err != nil {
			return err
		}
		fee, total = curve.SellNet(base, quoteFeeBps)
		after = sold - amount
	default:
		return fmt.Errorf("--side must be buy or sell, got %q", quoteSide)
	}

	priceBefore, err := params.SpotPrice(sold)
	if err != nil {
		return err
	}
	priceAfter, err := params.SpotPrice(after)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "side\t%s\n", quoteSide)
	fmt.Fprintf(w, "tokens\t%s\n", curve.Tokens(amount))
	fmt.Fprintf(w, "curve amount\t%s SOL\n", curve.SOL(base))
	fmt.Fprintf(w, "fee\t%s SOL\n", curve.SOL(fee))
	fmt.Fprintf(w, "total\t%s SOL\n", curve.SOL(total))
	fmt.Fprintf(w, "price\t%s -> %s SOL/token\n", curve.SOL(priceBefore), curve.SOL(priceAfter))
	fmt.Fprintf(w, "progress\t%s%% -> %s%%\n",
		curve.Percent(params.Progress(sold)), curve.Percent(params.Progress(after)))
	if err := w.Flush(); err != nil {
		return err
	}

	if quoteRows > 0 {
		return printCurve(params, quoteRows)
	}
	return nil
}

func printCurve(p curve.Params, rows int) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "\nSOLD\tPROGRESS\tRAISED SOL\tPRICE SOL\tMCAP SOL\t\n")
	for i := 0; i <= rows; i++ {
		x, err := curve.MulDiv(p.SaleSupply, uint64(i), uint64(rows))
		if err != nil {
			return err
		}
		raised, err := p.FundsAt(x)
		if err != nil {
			return err
		}
		price, err := p.SpotPrice(x)
		if err != nil {
			return err
		}
		mcap, err := p.MarketCap(x)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s%%\t%s\t%s\t%s\t\n",
			curve.Tokens(x).StringFixed(0), curve.Percent(p.Progress(x)),
			curve.SOL(raised).StringFixed(4), curve.SOL(price).String(), curve.SOL(mcap).StringFixed(2))
	}
	return w.Flush()
}
