// Package fleet holds the fleet domain: the Vehicle, Person, and Account row
// types, their grid schema descriptors, and the stores that persist them.
package fleet

import (
	"time"

	"fleetgrid/internal/schema"
)

// Vehicle type and fuel enumerations as stored in the database.
var (
	VehicleTypes = []string{"CAR", "TRUCK", "MOTORCYCLE", "BOAT", "HOVERBOARD"}
	FuelTypes    = []string{"GASOLINE", "DIESEL", "ELECTRICITY", "NUCLEAR"}
)

// Account is an administrative login that may manage vehicles and persons.
type Account struct {
	ID    int64
	Login string
	Role  string
}

// Person is a vehicle owner.
type Person struct {
	ID           int64
	FullName     string
	Age          int64
	License      string
	CreationTime time.Time
	Admin        *Account
}

// Vehicle is the primary grid entity.
type Vehicle struct {
	ID          int64
	Name        string
	Type        string
	FuelType    string
	EnginePower float64
	// Capacity is a fixed-point DECIMAL; kept as its exact string form so
	// values never round-trip through float64.
	Capacity          string
	DistanceTravelled int64
	CreationTime      time.Time
	Owner             *Person
	Admin             *Account
}

// AccountEntity describes the account table for grid queries. Accounts are
// only reached through associations, so they carry no default sort.
var AccountEntity = (&schema.Entity{
	Name:    "account",
	Table:   "account",
	IDField: "id",
	Alias:   "a",
	Fields: map[string]schema.Field{
		"id":    {Column: "id", Kind: schema.KindLong},
		"login": {Column: "login", Kind: schema.KindString},
		"role":  {Column: "role", Kind: schema.KindEnum, EnumValues: []string{"ADMIN", "OPERATOR"}},
	},
	Associations: map[string]schema.Association{},
}).MustValidate()

// PersonEntity describes the person table.
var PersonEntity = (&schema.Entity{
	Name:    "person",
	Table:   "person",
	IDField: "id",
	Alias:   "p",
	Fields: map[string]schema.Field{
		"id":           {Column: "id", Kind: schema.KindLong},
		"fullName":     {Column: "full_name", Kind: schema.KindString},
		"age":          {Column: "age", Kind: schema.KindInt},
		"license":      {Column: "license", Kind: schema.KindString},
		"creationTime": {Column: "creation_time", Kind: schema.KindTimestamp},
	},
	Associations: map[string]schema.Association{
		"admin": {Name: "admin", Target: AccountEntity, LocalColumn: "admin_id", RemoteColumn: "id"},
	},
	EagerAssociations: []string{"admin"},
	DefaultSort: []schema.SortKey{
		{FieldID: "creationTime", Desc: true},
		{FieldID: "id", Desc: true},
	},
}).MustValidate()

// VehicleEntity describes the vehicle table. Dotted grid columns may cross
// the owner and admin associations, e.g. "owner.fullName" or "admin.login".
var VehicleEntity = (&schema.Entity{
	Name:    "vehicle",
	Table:   "vehicle",
	IDField: "id",
	Alias:   "v",
	Fields: map[string]schema.Field{
		"id":                {Column: "id", Kind: schema.KindLong},
		"name":              {Column: "name", Kind: schema.KindString},
		"type":              {Column: "type", Kind: schema.KindEnum, EnumValues: VehicleTypes},
		"fuelType":          {Column: "fuel_type", Kind: schema.KindEnum, EnumValues: FuelTypes},
		"enginePower":       {Column: "engine_power", Kind: schema.KindDouble},
		"capacity":          {Column: "capacity", Kind: schema.KindDecimal},
		"distanceTravelled": {Column: "distance_travelled", Kind: schema.KindLong},
		"creationTime":      {Column: "creation_time", Kind: schema.KindTimestamp},
	},
	Associations: map[string]schema.Association{
		"owner": {Name: "owner", Target: PersonEntity, LocalColumn: "owner_id", RemoteColumn: "id"},
		"admin": {Name: "admin", Target: AccountEntity, LocalColumn: "admin_id", RemoteColumn: "id"},
	},
	EagerAssociations: []string{"owner", "admin"},
	DefaultSort: []schema.SortKey{
		{FieldID: "creationTime", Desc: true},
		{FieldID: "id", Desc: true},
	},
}).MustValidate()
