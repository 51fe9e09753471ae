package models

import (
	"time"

	"gorm.io/gorm"
)

// Role of a user within the platform.
type Role string

const (
	RoleDriver Role = "Driver"
	RoleStaff  Role = "Staff"
	RoleAdmin  Role = "Admin"
)

// BatteryStatus tracks where a physical battery sits in its lifecycle.
type BatteryStatus string

const (
	BatteryAvailable    BatteryStatus = "Available"
	BatteryCharging     BatteryStatus = "Charging"
	BatteryMaintenance  BatteryStatus = "Maintenance"
	BatteryInUse        BatteryStatus = "InUse"
	BatteryQualityCheck BatteryStatus = "QualityCheck"
)

// BatteryOwner marks whether the unit currently belongs to a station or a driver.
type BatteryOwner string

const (
	OwnerStation BatteryOwner = "Station"
	OwnerDriver  BatteryOwner = "Driver"
)

// SlotStatus of a physical charging bay.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "Available"
	SlotFull      SlotStatus = "Full_slot"
)

// BookingStatus lifecycle: Pending -> Confirmed -> Completed, or Cancelled.
type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCompleted BookingStatus = "Completed"
	BookingCancelled BookingStatus = "Cancelled"
)

// PaymentMethod for a swap or subscription purchase.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "Cash"
	MethodOnline       PaymentMethod = "Online"
	MethodSubscription PaymentMethod = "Subscription_Plan"
)

// PaymentStatus of a transaction with the gateway or plan credit.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentCancelled PaymentStatus = "Cancelled"
)

// SwapStatus of a battery exchange record.
type SwapStatus string

const (
	SwapPending   SwapStatus = "Pending"
	SwapConfirmed SwapStatus = "Confirmed"
	SwapCompleted SwapStatus = "Completed"
	SwapCancelled SwapStatus = "Cancelled"
)

// SubscriptionStatus of a driver's plan.
type SubscriptionStatus string

const (
	SubscriptionInactive  SubscriptionStatus = "Inactive"
	SubscriptionActive    SubscriptionStatus = "Active"
	SubscriptionCancelled SubscriptionStatus = "Cancelled"
)

// User stores authentication and profile details
type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;not null"`
	Email    string `gorm:"uniqueIndex;not null"`
	Password string `gorm:"not null"` // Hashed
	Role     Role   `gorm:"not null;default:Driver"`
	Bookings []Booking
	Vehicles []Vehicle
}

// Station is a physical swap station with its charging bays.
type Station struct {
	gorm.Model
	Name            string
	Latitude        float64
	Longitude       float64
	ElectricityRate int64  // currency units per kWh
	ControllerAddr  string // bay-lock controller endpoint
	Active          bool   `gorm:"default:true"`
	AdminID         *uint
	Admin           *User                `gorm:"foreignKey:AdminID"`
	Slots           []StationBatterySlot `gorm:"foreignKey:StationID"`
	Staff           []StationStaff       `gorm:"foreignKey:StationID"`
}

// StationStaff assigns a staff user to a station.
type StationStaff struct {
	gorm.Model
	StationID uint
	StaffID   uint
	Staff     User `gorm:"foreignKey:StaffID"`
}

// BatteryType groups interchangeable batteries; a vehicle only accepts its own type.
type BatteryType struct {
	gorm.Model
	Name       string `gorm:"uniqueIndex"`
	CapacityWh int
}

// Battery represents the physical unit
type Battery struct {
	gorm.Model
	SerialNumber    string        `gorm:"uniqueIndex"`
	Owner           BatteryOwner  `gorm:"not null;default:Station"`
	Status          BatteryStatus `gorm:"not null;default:Available"`
	CapacityWh      int
	CurrentChargeWh int
	BatteryTypeID   uint
	BatteryType     BatteryType
	StationID       *uint
	Station         *Station `gorm:"foreignKey:StationID"`
	VehicleID       *uint
	Vehicle         *Vehicle `gorm:"foreignKey:VehicleID"`
}

// Vehicle owned by a driver; BatteryCount is how many bays the vehicle has.
type Vehicle struct {
	gorm.Model
	UserID        uint
	User          User
	Plate         string `gorm:"uniqueIndex"`
	BatteryTypeID uint
	BatteryType   BatteryType
	BatteryCount  int `gorm:"default:1"`
}

// StationBatterySlot is a physical charging bay at a station.
type StationBatterySlot struct {
	gorm.Model
	StationID  uint
	Station    Station
	SlotNumber int
	Status     SlotStatus `gorm:"not null;default:Available"`
	BatteryID  *uint
	Battery    *Battery `gorm:"foreignKey:BatteryID"`
}

// Booking reserves one or more slots at a station for a vehicle.
type Booking struct {
	gorm.Model
	UserID      uint
	User        User
	StationID   uint
	Station     Station
	VehicleID   uint
	Vehicle     Vehicle
	BookingTime time.Time
	Status      BookingStatus `gorm:"not null;default:Pending"`
	CompletedAt *time.Time
	Slots       []BatteryBookingSlot `gorm:"foreignKey:BookingID"`
}

// BatteryBookingSlot pins one reserved bay (and the battery in it) to a booking.
type BatteryBookingSlot struct {
	gorm.Model
	BookingID uint
	BatteryID uint
	Battery   Battery
	SlotID    uint
	Slot      StationBatterySlot `gorm:"foreignKey:SlotID"`
	Status    BookingStatus      `gorm:"not null;default:Pending"`
}

// Payment records one monetary transaction. BookingID is nil for
// subscription purchases, which settle against the plan instead.
type Payment struct {
	gorm.Model
	UserID         uint
	User           User
	BookingID      *uint
	Booking        *Booking `gorm:"foreignKey:BookingID"`
	SubscriptionID *uint
	Subscription   *Subscription `gorm:"foreignKey:SubscriptionID"`
	OrderCode      string        `gorm:"uniqueIndex"`
	Amount         int64
	Currency       string        `gorm:"default:IDR"`
	Method         PaymentMethod `gorm:"not null"`
	Status         PaymentStatus `gorm:"not null;default:Pending"`
	CheckoutURL    string
	Description    string
}

// BatterySwap is the historical record of one battery-for-battery exchange.
type BatterySwap struct {
	gorm.Model
	VehicleID       uint
	StationID       uint
	UserID          uint
	StationStaffID  *uint
	BatteryID       uint    // outgoing unit coming off the vehicle
	OldBattery      Battery `gorm:"foreignKey:BatteryID"`
	ToBatteryID     uint    // incoming unit from the station slot
	NewBattery      Battery `gorm:"foreignKey:ToBatteryID"`
	PaymentID       uint
	Status          SwapStatus `gorm:"not null;default:Pending"`
	RejectionReason string
	SwappedAt       *time.Time
}

// SubscriptionPlan is a purchasable swap allowance.
type SubscriptionPlan struct {
	gorm.Model
	Name           string `gorm:"uniqueIndex"`
	Price          int64
	SwapAmount     int
	DurationMonths int `gorm:"default:1"`
}

// Subscription is a driver's plan instance with its consumed quota.
type Subscription struct {
	gorm.Model
	UserID    uint
	User      User
	PlanID    uint
	Plan      SubscriptionPlan `gorm:"foreignKey:PlanID"`
	StartDate *time.Time
	EndDate   *time.Time
	Status    SubscriptionStatus `gorm:"not null;default:Inactive"`
	SwapsUsed int
}

// StaffAbsence marks a staff member unavailable for a date range.
type StaffAbsence struct {
	gorm.Model
	StaffID   uint
	Staff     User `gorm:"foreignKey:StaffID"`
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

// StationStaffOverride reassigns a replacement staff member to a station for one date.
type StationStaffOverride struct {
	gorm.Model
	StationID uint
	StaffID   uint
	Staff     User `gorm:"foreignKey:StaffID"`
	Date      time.Time
}

// All lists every entity for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{}, &Station{}, &StationStaff{}, &BatteryType{}, &Battery{},
		&Vehicle{}, &StationBatterySlot{}, &Booking{}, &BatteryBookingSlot{},
		&Payment{}, &BatterySwap{}, &SubscriptionPlan{}, &Subscription{},
		&StaffAbsence{}, &StationStaffOverride{},
	}
}
