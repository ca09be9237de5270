package services

import (
	"bytes"
	"delivery-batch-service/internal/domain"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

type ManifestConfig struct {
	// DepartureTime is the hub departure as "HH:MM" on the delivery date.
	DepartureTime         string
	ServiceMinutesPerStop int
	// DefaultLegMinutes is assumed per stop when the batch has no route metrics.
	DefaultLegMinutes int
}

// ManifestGenerator projects batches into driver manifests.
// Output depends only on the batch, so equal batches render byte-identical documents.
type ManifestGenerator struct {
	cfg       ManifestConfig
	departure time.Duration
}

func NewManifestGenerator(cfg ManifestConfig) (*ManifestGenerator, error) {
	if cfg.DepartureTime == "" {
		cfg.DepartureTime = "09:00"
	}
	if cfg.ServiceMinutesPerStop < 0 || cfg.DefaultLegMinutes < 0 {
		return nil, fmt.Errorf("manifest: stop minutes must not be negative")
	}

	t, err := time.Parse("15:04", cfg.DepartureTime)
	if err != nil {
		return nil, fmt.Errorf("manifest: departure time %q: %w", cfg.DepartureTime, err)
	}

	return &ManifestGenerator{
		cfg:       cfg,
		departure: time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute,
	}, nil
}

// Generate fails with domain.ErrEmptyBatch for a batch without stops.
func (g *ManifestGenerator) Generate(b *domain.DeliveryBatch) (domain.Manifest, error) {
	if b == nil || len(b.Stops) == 0 {
		id := ""
		if b != nil {
			id = b.ID
		}
		return domain.Manifest{}, fmt.Errorf("manifest for batch %q: %w", id, domain.ErrEmptyBatch)
	}

	sum := b.Summary()
	m := domain.Manifest{
		BatchID:      b.ID,
		DeliveryDay:  b.DeliveryDay,
		DeliveryDate: b.DeliveryDate.Format(time.DateOnly),
		Status:       b.Status,
		Stops:        make([]domain.ManifestStop, 0, len(b.Stops)),
		Summary: domain.ManifestSummary{
			TotalOrders:       sum.TotalOrders,
			TotalItems:        sum.TotalItems,
			TotalValue:        sum.TotalValue.StringFixed(2),
			EstimatedDelivery: g.window(b),
		},
	}

	if b.Driver != nil {
		m.Driver = domain.ManifestDriver{
			Assigned:    true,
			Name:        b.Driver.Name,
			Phone:       b.Driver.Phone,
			VehicleID:   b.Driver.VehicleID,
			RouteNumber: b.Driver.RouteNumber,
		}
	}

	for _, s := range b.Stops {
		items := make([]domain.ManifestItem, 0, len(s.Items))
		for _, li := range s.Items {
			items = append(items, domain.ManifestItem{Name: li.Name, Quantity: li.Quantity})
		}
		m.Stops = append(m.Stops, domain.ManifestStop{
			StopNumber:          s.StopNumber,
			OrderID:             s.OrderID,
			OrderNumber:         s.OrderNumber,
			CustomerName:        s.Customer.Name,
			CustomerPhone:       s.Customer.Phone,
			Address:             s.Address.Line(),
			Items:               items,
			OrderValue:          s.OrderValue.StringFixed(2),
			SpecialInstructions: s.SpecialInstructions,
			Priority:            s.Priority,
			Delivered:           s.Delivered(),
		})
	}

	if b.Route != nil {
		m.Route = &domain.ManifestRoute{
			TotalDistanceMiles:   b.Route.TotalDistanceMiles,
			EstimatedTimeMinutes: b.Route.EstimatedTimeMinutes,
			FuelCostEstimate:     b.Route.FuelCostEstimate.StringFixed(2),
		}
	}

	return m, nil
}

func (g *ManifestGenerator) window(b *domain.DeliveryBatch) domain.DeliveryWindow {
	y, mo, d := b.DeliveryDate.Date()
	start := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC).Add(g.departure)

	driveMinutes := g.cfg.DefaultLegMinutes * len(b.Stops)
	if b.Route != nil && b.Route.EstimatedTimeMinutes > 0 {
		driveMinutes = b.Route.EstimatedTimeMinutes
	}
	end := start.Add(time.Duration(driveMinutes+g.cfg.ServiceMinutesPerStop*len(b.Stops)) * time.Minute)

	return domain.DeliveryWindow{
		Start: start.Format(time.RFC3339),
		End:   end.Format(time.RFC3339),
	}
}

func RenderManifestJSON(m domain.Manifest) ([]byte, error) {
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render manifest %s: %w", m.BatchID, err)
	}
	return append(body, '\n'), nil
}

// RenderManifestPDF prints the manifest on A4 portrait pages.
// Document dates come from the delivery date so repeated renders are identical.
func RenderManifestPDF(m domain.Manifest) ([]byte, error) {
	stamp, err := time.Parse(time.DateOnly, m.DeliveryDate)
	if err != nil {
		return nil, fmt.Errorf("render manifest %s: delivery date: %w", m.BatchID, err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetTitle("Delivery manifest "+m.BatchID, true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr("Delivery Manifest"), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Batch %s  |  %s %s  |  %s", m.BatchID, m.DeliveryDay, m.DeliveryDate, m.Status)), "", 1, "L", false, 0, "")

	driver := "Driver: not assigned"
	if m.Driver.Assigned {
		driver = fmt.Sprintf("Driver: %s  |  %s  |  Vehicle %s", m.Driver.Name, m.Driver.Phone, m.Driver.VehicleID)
		if m.Driver.RouteNumber != "" {
			driver += "  |  Route " + m.Driver.RouteNumber
		}
	}
	pdf.CellFormat(0, 6, tr(driver), "", 1, "L", false, 0, "")

	summary := fmt.Sprintf("Orders: %d  |  Items: %d  |  Value: $%s  |  Window: %s - %s",
		m.Summary.TotalOrders, m.Summary.TotalItems, m.Summary.TotalValue,
		clock(m.Summary.EstimatedDelivery.Start), clock(m.Summary.EstimatedDelivery.End))
	pdf.CellFormat(0, 6, tr(summary), "", 1, "L", false, 0, "")

	if m.Route != nil {
		route := fmt.Sprintf("Route: %.2f mi  |  %d min  |  Fuel est. $%s",
			m.Route.TotalDistanceMiles, m.Route.EstimatedTimeMinutes, m.Route.FuelCostEstimate)
		pdf.CellFormat(0, 6, tr(route), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range manifestColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, s := range m.Stops {
		items := make([]string, 0, len(s.Items))
		for _, it := range s.Items {
			items = append(items, strconv.Itoa(it.Quantity)+"x "+it.Name)
		}
		mark := ""
		if s.Delivered {
			mark = "yes"
		}

		cells := []string{
			strconv.Itoa(s.StopNumber),
			s.OrderNumber,
			s.CustomerName,
			s.Address,
			strings.Join(items, ", "),
			"$" + s.OrderValue,
			mark,
		}
		for i, col := range manifestColumns {
			pdf.CellFormat(col.width, 6, tr(fit(pdf, cells[i], col.width)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)

		if s.SpecialInstructions != "" || s.CustomerPhone != "" {
			note := strings.TrimSpace(strings.Join([]string{s.CustomerPhone, s.SpecialInstructions}, "  "))
			pdf.SetFont("Helvetica", "I", 8)
			pdf.MultiCell(0, 5, tr("   "+note), "", "L", false)
			pdf.SetFont("Helvetica", "", 9)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render manifest %s: %w", m.BatchID, err)
	}
	return buf.Bytes(), nil
}

var manifestColumns = []struct {
	title string
	width float64
}{
	{"#", 8},
	{"Order", 22},
	{"Customer", 30},
	{"Address", 55},
	{"Items", 45},
	{"Value", 18},
	{"Done", 12},
}

// fit truncates s so it prints inside a cell of width w.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	const pad = 2
	if pdf.GetStringWidth(s) <= w-pad {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > w-pad {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

func clock(rfc string) string {
	t, err := time.Parse(time.RFC3339, rfc)
	if err != nil {
		return rfc
	}
	return t.Format("15:04")
}
