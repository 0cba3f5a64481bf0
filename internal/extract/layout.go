package extract

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/finsight/statement-ledger/internal/models"
)

// xRange is an inclusive horizontal band on the page.
type xRange struct{ lo, hi float64 }

func (r xRange) contains(x float64) bool { return x >= r.lo && x <= r.hi }

// columnLayout holds an issuer's column X bands and the vertical bands
// where transaction rows live. Values come from coordinate analysis of
// real statements of each format.
type columnLayout struct {
	date       xRange
	desc       xRange
	withdrawal xRange
	deposit    xRange
	balance    xRange

	// Page one has a large account header; later pages a small continued
	// header. Rows above these Y values, or below the footer Y, are not
	// transactions.
	yHeaderFirstPage float64
	yHeaderOther     float64
	yFooter          float64
}

var columnLayouts = map[models.IssuerTag]columnLayout{
	models.IssuerCIBC: {
		date:             xRange{50, 80},
		desc:             xRange{100, 325},
		withdrawal:       xRange{330, 400},
		deposit:          xRange{420, 480},
		balance:          xRange{520, 600},
		yHeaderFirstPage: 460,
		yHeaderOther:     120,
		yFooter:          650,
	},
	models.IssuerRBC: {
		date:             xRange{40, 80},
		desc:             xRange{85, 250},
		withdrawal:       xRange{340, 400},
		deposit:          xRange{420, 480},
		balance:          xRange{520, 600},
		yHeaderFirstPage: 445,
		yHeaderOther:     120,
		yFooter:          650,
	},
}

// Column headers and boilerplate tokens that are never transaction data.
var skipExactWords = map[string]bool{
	"Date": true, "Description": true, "Withdrawals": true,
	"Deposits": true, "Balance": true, "Transaction": true,
	"details": true, "continued": true, "Opening": true,
	"Closing": true, "($)": true, "Account": true,
	"Statement": true, "number": true, "Branch": true,
	"transit": true, "forward": true, "For": true,
}

var skipSubstrings = []string{
	"Free Transaction", "Important:", "Foreign Currency",
	"Trademark", "Page", "registered trademark", "Conversion Fee",
	"administration fee", "account errors", "omissions",
	"irregularities", "paperless",
}

var (
	dayMonthToken = regexp.MustCompile(`^\d{1,2}(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)$`)
	monthToken    = regexp.MustCompile(`^(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)$`)
)

// layoutRow is one physical statement row: items sharing a (page, Y)
// position, bucketed into columns by X band.
type layoutRow struct {
	page       int
	y          float64
	date       string
	desc       []string
	withdrawal *float64
	deposit    *float64
	balance    *float64
}

// maxContinuationRows bounds how many amount-less rows are folded into the
// transaction above them. Statement entries span at most three physical
// rows: the kind line, a reference line, and the merchant line.
const maxContinuationRows = 2

// fromItems reconstructs transactions from positioned text items using
// the issuer's column geometry.
func fromItems(items []models.TextItem, tag models.IssuerTag, log zerolog.Logger) []models.TransactionCandidate {
	layout, ok := columnLayouts[tag]
	if !ok {
		log.Warn().Str("issuer", string(tag)).Msg("no column layout for issuer")
		return nil
	}

	rows := groupRows(filterItems(items, layout), layout)

	var out []models.TransactionCandidate
	var current *layoutRow
	currentDate := ""
	continuations := 0

	emit := func() {
		if current == nil {
			return
		}
		cand, ok := rowToCandidate(current)
		if ok {
			out = append(out, cand)
		}
		current = nil
	}

	for i := range rows {
		row := &rows[i]
		if row.date != "" {
			currentDate = row.date
		}

		if row.withdrawal != nil || row.deposit != nil {
			emit()
			row.date = currentDate
			current = row
			continuations = 0
			continue
		}

		// No amounts: description continuation for the open transaction.
		if current != nil && continuations < maxContinuationRows {
			current.desc = append(current.desc, row.desc...)
			continuations++
		}
	}
	emit()

	return out
}

// filterItems removes header/footer bands and boilerplate tokens.
func filterItems(items []models.TextItem, layout columnLayout) []models.TextItem {
	var kept []models.TextItem
	for _, item := range items {
		if skipExactWords[item.Text] {
			continue
		}
		if containsAnySubstring(item.Text, skipSubstrings) {
			continue
		}
		if item.Page == 0 && item.Y < layout.yHeaderFirstPage {
			continue
		}
		if item.Page > 0 && item.Y < layout.yHeaderOther {
			continue
		}
		if item.Y > layout.yFooter {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// groupRows buckets items into rows keyed by (page, Y rounded to 0.1) and
// assigns each item to a column by X band. Rows come back ordered by page
// then Y.
func groupRows(items []models.TextItem, layout columnLayout) []layoutRow {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Page != items[j].Page {
			return items[i].Page < items[j].Page
		}
		if items[i].Y != items[j].Y {
			return items[i].Y < items[j].Y
		}
		return items[i].X < items[j].X
	})

	type rowKey struct {
		page int
		y    float64
	}
	index := make(map[rowKey]*layoutRow)
	var order []rowKey

	for _, item := range items {
		key := rowKey{item.Page, math.Round(item.Y*10) / 10}
		row := index[key]
		if row == nil {
			row = &layoutRow{page: item.Page, y: item.Y}
			index[key] = row
			order = append(order, key)
		}

		switch {
		case layout.date.contains(item.X):
			assignDateToken(row, item.Text)
		case layout.desc.contains(item.X):
			row.desc = append(row.desc, item.Text)
		case layout.withdrawal.contains(item.X):
			if v, ok := parseColumnAmount(item.Text); ok {
				row.withdrawal = &v
			}
		case layout.deposit.contains(item.X):
			if v, ok := parseColumnAmount(item.Text); ok {
				row.deposit = &v
			}
		case layout.balance.contains(item.X):
			if v, ok := parseColumnAmount(item.Text); ok {
				row.balance = &v
			}
		}
	}

	rows := make([]layoutRow, 0, len(order))
	for _, key := range order {
		rows = append(rows, *index[key])
	}
	return rows
}

// assignDateToken folds one date-column token into the row. CIBC splits
// the date across two tokens ("Nov" then "3"); RBC glues them ("27Oct").
func assignDateToken(row *layoutRow, text string) {
	switch {
	case dayMonthToken.MatchString(text):
		row.date = text
	case monthToken.MatchString(text):
		row.date = text
	default:
		if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= 31 && row.date != "" {
			row.date += " " + text
		}
	}
}

// rowToCandidate converts an assembled row into a transaction candidate.
// Rows without a positive amount are dropped.
func rowToCandidate(row *layoutRow) (models.TransactionCandidate, bool) {
	isCredit := row.deposit != nil && *row.deposit > 0

	var amount float64
	if isCredit {
		amount = *row.deposit
	} else if row.withdrawal != nil {
		amount = *row.withdrawal
	}
	if amount <= 0 {
		return models.TransactionCandidate{}, false
	}

	cand := models.TransactionCandidate{
		Date:        row.date,
		Description: strings.Join(strings.Fields(strings.Join(row.desc, " ")), " "),
		Balance:     row.balance,
		ParseMethod: "layout",
	}
	if isCredit {
		cand.Type = "credit"
		cand.Amount = amount
	} else {
		cand.Type = "debit"
		cand.Amount = -amount
	}
	return cand, true
}

func parseColumnAmount(text string) (float64, bool) {
	v, err := parseAmount(text)
	if err != nil || text == "" {
		return 0, false
	}
	return v, true
}

func containsAnySubstring(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
