package models

import (
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/invoice_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Customer struct {
	ID             int       `gorm:"primary_key" json:"customer_id"`
	BusinessId     string    `gorm:"size:64;not null;index:uniq_customer_gst,unique,priority:1" json:"business_id"`
	GstNumber      *string   `gorm:"size:20;index:uniq_customer_gst,unique,priority:2" json:"gst_number"`
	Name           *string   `gorm:"size:255" json:"name"`
	Mobile         *string   `gorm:"size:20" json:"mobile"`
	Email          *string   `gorm:"size:100" json:"email"`
	WhatsappNumber *string   `gorm:"size:20" json:"whatsapp_number"`
	Address        *string   `gorm:"type:text" json:"address"`
	State          *string   `gorm:"size:100" json:"state"`
	Pincode        *string   `gorm:"size:10" json:"pincode"`
	PlaceOfSupply  *string   `gorm:"size:100" json:"place_of_supply"`
	VehicleNumber  *string   `gorm:"size:50" json:"vehicle_number"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name           utils.OptionalString `json:"name"`
	Mobile         utils.OptionalString `json:"mobile"`
	Gst            utils.OptionalString `json:"gst"`
	Email          utils.OptionalString `json:"email"`
	WhatsappNumber utils.OptionalString `json:"whatsapp_number"`
	Address        utils.OptionalString `json:"address"`
	State          utils.OptionalString `json:"state"`
	Pincode        utils.OptionalString `json:"pincode"`
	PlaceOfSupply  utils.OptionalString `json:"placeOfSupply"`
	VehicleNo      utils.OptionalString `json:"vehicleNo"`
}

func optionalPhone(o utils.OptionalString) *string {
	if !o.Set {
		return nil
	}
	normalized := utils.NormalizePhoneNumber(o.Value)
	return &normalized
}

func (input *NewCustomer) toCustomer(businessId string) *Customer {
	return &Customer{
		BusinessId:     businessId,
		GstNumber:      input.Gst.Ptr(),
		Name:           input.Name.Ptr(),
		Mobile:         optionalPhone(input.Mobile),
		Email:          input.Email.Ptr(),
		WhatsappNumber: optionalPhone(input.WhatsappNumber),
		Address:        input.Address.Ptr(),
		State:          input.State.Ptr(),
		Pincode:        input.Pincode.Ptr(),
		PlaceOfSupply:  input.PlaceOfSupply.Ptr(),
		VehicleNumber:  input.VehicleNo.Ptr(),
	}
}

// ResolveCustomer returns the id of the business's customer with the input's GST number,
// inserting a new row when there is none. A blank GST number never matches.
// Existing rows are never updated. Must run inside the caller's transaction.
func ResolveCustomer(tx *gorm.DB, businessId string, input *NewCustomer) (int, error) {
	if input == nil {
		return 0, utils.NewValidationError("Missing required invoice data", map[string]string{"customer": "required"})
	}

	gst := strings.TrimSpace(input.Gst.Value)
	if input.Gst.Set && gst != "" {
		id, err := findCustomerIdByGst(tx, businessId, gst, false)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}

	customer := input.toCustomer(businessId)
	err := tx.Create(customer).Error
	if err != nil && gst != "" && utils.IsDuplicateKeyError(err) {
		// a concurrent invoice inserted the same GST number and committed first
		return findCustomerIdByGst(tx, businessId, gst, true)
	}
	if err != nil {
		return 0, err
	}
	return customer.ID, nil
}

func findCustomerIdByGst(tx *gorm.DB, businessId string, gst string, locking bool) (int, error) {
	q := tx.Model(&Customer{}).Select("id").Where("business_id = ? AND gst_number = ?", businessId, gst)
	if locking {
		// locking read sees rows committed after this transaction's snapshot
		q = q.Clauses(clause.Locking{Strength: "SHARE"})
	}
	var existing Customer
	if err := q.Take(&existing).Error; err != nil {
		return 0, err
	}
	return existing.ID, nil
}
