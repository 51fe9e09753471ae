package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"voltswap/config"
	"voltswap/gateway"
	"voltswap/models"
)

// fixture is a fully seeded in-memory world: one station with two ready
// slots, a driver whose vehicle carries two depleted batteries, and the
// staff/admin users the coordination paths need.
type fixture struct {
	db  *gorm.DB
	cfg *config.Config

	driver models.User
	staff  models.User
	admin  models.User

	batteryType models.BatteryType
	station     models.Station
	vehicle     models.Vehicle

	slots         []models.StationBatterySlot
	slotBatteries []models.Battery
	oldBatteries  []models.Battery

	plan models.SubscriptionPlan
}

func testConfig() *config.Config {
	return &config.Config{
		BatteryPercentageMin: 0.2,
		Surcharge:            30000,
		Currency:             "IDR",
		DefaultBookingHold:   3 * time.Hour,
		ReclaimAfter:         time.Hour,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	f := &fixture{db: db, cfg: testConfig()}

	f.driver = models.User{Username: "driver", Email: "driver@example.com", Password: "x", Role: models.RoleDriver}
	f.staff = models.User{Username: "staff", Email: "staff@example.com", Password: "x", Role: models.RoleStaff}
	f.admin = models.User{Username: "admin", Email: "admin@example.com", Password: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&f.driver).Error)
	require.NoError(t, db.Create(&f.staff).Error)
	require.NoError(t, db.Create(&f.admin).Error)

	f.batteryType = models.BatteryType{Name: "NCM-60", CapacityWh: 1000}
	require.NoError(t, db.Create(&f.batteryType).Error)

	f.station = models.Station{
		Name: "S1", Latitude: -6.2, Longitude: 106.8,
		ElectricityRate: 2000, Active: true, AdminID: &f.admin.ID,
	}
	require.NoError(t, db.Create(&f.station).Error)
	require.NoError(t, db.Create(&models.StationStaff{StationID: f.station.ID, StaffID: f.staff.ID}).Error)

	f.vehicle = models.Vehicle{
		UserID: f.driver.ID, Plate: "B-1234-XY",
		BatteryTypeID: f.batteryType.ID, BatteryCount: 2,
	}
	require.NoError(t, db.Create(&f.vehicle).Error)

	// Ready batteries in the station bays: one nearly empty (priced by
	// energy), one nearly full (priced at the surcharge).
	charges := []int{150, 900}
	for i, charge := range charges {
		b := models.Battery{
			SerialNumber: fmt.Sprintf("SL-%03d", i+1),
			Owner:        models.OwnerStation, Status: models.BatteryAvailable,
			CapacityWh: 1000, CurrentChargeWh: charge,
			BatteryTypeID: f.batteryType.ID, StationID: &f.station.ID,
		}
		require.NoError(t, db.Create(&b).Error)
		f.slotBatteries = append(f.slotBatteries, b)

		slot := models.StationBatterySlot{
			StationID: f.station.ID, SlotNumber: i + 1,
			Status: models.SlotAvailable, BatteryID: &b.ID,
		}
		require.NoError(t, db.Create(&slot).Error)
		f.slots = append(f.slots, slot)
	}

	// Depleted batteries currently on the vehicle.
	for i := 0; i < 2; i++ {
		b := models.Battery{
			SerialNumber: fmt.Sprintf("VH-%03d", i+1),
			Owner:        models.OwnerDriver, Status: models.BatteryInUse,
			CapacityWh: 1000, CurrentChargeWh: 50,
			BatteryTypeID: f.batteryType.ID, VehicleID: &f.vehicle.ID,
		}
		require.NoError(t, db.Create(&b).Error)
		f.oldBatteries = append(f.oldBatteries, b)
	}

	f.plan = models.SubscriptionPlan{Name: "Basic", Price: 150000, SwapAmount: 10, DurationMonths: 1}
	require.NoError(t, db.Create(&f.plan).Error)

	return f
}

func (f *fixture) bookingService() *BookingService {
	return &BookingService{DB: f.db, Log: zap.NewNop(), Cfg: f.cfg}
}

func (f *fixture) paymentService(gw gateway.PaymentGateway) *PaymentService {
	return &PaymentService{DB: f.db, Log: zap.NewNop(), Cfg: f.cfg, Gateway: gw}
}

func (f *fixture) driverCaller() Caller { return Caller{UserID: f.driver.ID, Role: models.RoleDriver} }
func (f *fixture) staffCaller() Caller  { return Caller{UserID: f.staff.ID, Role: models.RoleStaff} }
func (f *fixture) adminCaller() Caller  { return Caller{UserID: f.admin.ID, Role: models.RoleAdmin} }

// activateSubscription gives the driver a live plan with the given usage.
func (f *fixture) activateSubscription(t *testing.T, used int) *models.Subscription {
	t.Helper()
	now := time.Now()
	end := now.AddDate(0, 1, 0)
	sub := models.Subscription{
		UserID: f.driver.ID, PlanID: f.plan.ID,
		Status: models.SubscriptionActive,
		StartDate: &now, EndDate: &end, SwapsUsed: used,
	}
	require.NoError(t, f.db.Create(&sub).Error)
	return &sub
}

// verdict drives the fake gateway's answer for one order.
type verdict struct {
	success bool
	settled bool
}

// fakeGateway records link requests and answers verification from a map.
type fakeGateway struct {
	links    []gateway.LinkRequest
	verdicts map[string]verdict
	linkErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{verdicts: make(map[string]verdict)}
}

func (g *fakeGateway) CreatePaymentLink(req gateway.LinkRequest) (string, error) {
	if g.linkErr != nil {
		return "", g.linkErr
	}
	g.links = append(g.links, req)
	return "https://pay.example/" + req.OrderCode, nil
}

func (g *fakeGateway) VerifyTransaction(orderCode string) (bool, bool, error) {
	v := g.verdicts[orderCode]
	return v.success, v.settled, nil
}
