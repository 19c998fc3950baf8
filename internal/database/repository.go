package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"netcop-updater/internal/models"
)

// Repository gives transactional access to traffic classes and their members.
// It is only valid inside Store.WithTx.
type Repository struct {
	tx     *sql.Tx
	driver string
}

func (r *Repository) q(query string) string {
	return rebind(r.driver, query)
}

// FindClass returns nil when the class does not exist
func (r *Repository) FindClass(ctx context.Context, id int) (*models.TrafficClass, error) {
	var class models.TrafficClass
	err := r.tx.QueryRowContext(ctx, r.q(models.FindClassQuery), id).Scan(
		&class.ID,
		&class.Name,
		&class.Description,
		&class.Kind,
		&class.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find class %d: %w", id, err)
	}
	return &class, nil
}

func (r *Repository) CreateClass(ctx context.Context, class *models.TrafficClass) error {
	_, err := r.tx.ExecContext(ctx, r.q(models.CreateClassQuery),
		class.ID, class.Name, class.Description, int(class.Kind), class.Active)
	if err != nil {
		return fmt.Errorf("failed to create class %d: %w", class.ID, err)
	}
	logrus.Debugf("Created traffic class %s", class)
	return nil
}

// UpdateClass writes the scalar fields of an existing class
func (r *Repository) UpdateClass(ctx context.Context, class *models.TrafficClass) error {
	result, err := r.tx.ExecContext(ctx, r.q(models.UpdateClassQuery),
		class.Name, class.Description, class.Active, class.ID)
	if err != nil {
		return fmt.Errorf("failed to update class %d: %w", class.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("expected 1 row affected updating class %d, got %d", class.ID, rowsAffected)
	}
	return nil
}

func (r *Repository) ListSubnets(ctx context.Context, classID int, group models.Group) ([]models.Subnet, error) {
	rows, err := r.tx.QueryContext(ctx, r.q(models.ListSubnetsQuery), classID, string(group))
	if err != nil {
		return nil, fmt.Errorf("failed to list subnets of class %d: %w", classID, err)
	}
	defer rows.Close()

	var subnets []models.Subnet
	for rows.Next() {
		var subnet models.Subnet
		if err := rows.Scan(&subnet.Address, &subnet.Prefix); err != nil {
			return nil, fmt.Errorf("failed to scan subnet: %w", err)
		}
		subnets = append(subnets, subnet)
	}
	return subnets, rows.Err()
}

// AddSubnet links the subnet to the class, creating the cidr row if needed
func (r *Repository) AddSubnet(ctx context.Context, classID int, group models.Group, subnet models.Subnet) error {
	var cidrID int
	err := r.tx.QueryRowContext(ctx, r.q(models.FindCIDRQuery), subnet.Address, subnet.Prefix).Scan(&cidrID)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.tx.QueryRowContext(ctx, r.q(models.InsertCIDRQuery), subnet.Address, subnet.Prefix).Scan(&cidrID)
	}
	if err != nil {
		return fmt.Errorf("failed to get cidr %s: %w", subnet, err)
	}

	if _, err := r.tx.ExecContext(ctx, r.q(models.AddClassCIDRQuery), classID, cidrID, string(group)); err != nil {
		return fmt.Errorf("failed to add subnet %s to class %d: %w", subnet, classID, err)
	}
	logrus.Debugf("Class %d: added %s subnet %s", classID, group, subnet)
	return nil
}

func (r *Repository) RemoveSubnet(ctx context.Context, classID int, group models.Group, subnet models.Subnet) error {
	_, err := r.tx.ExecContext(ctx, r.q(models.RemoveClassCIDRQuery),
		classID, string(group), subnet.Address, subnet.Prefix)
	if err != nil {
		return fmt.Errorf("failed to remove subnet %s from class %d: %w", subnet, classID, err)
	}
	logrus.Debugf("Class %d: removed %s subnet %s", classID, group, subnet)
	return nil
}

func (r *Repository) ListPorts(ctx context.Context, classID int, group models.Group) ([]models.Port, error) {
	rows, err := r.tx.QueryContext(ctx, r.q(models.ListPortsQuery), classID, string(group))
	if err != nil {
		return nil, fmt.Errorf("failed to list ports of class %d: %w", classID, err)
	}
	defer rows.Close()

	var ports []models.Port
	for rows.Next() {
		var port models.Port
		if err := rows.Scan(&port.Number, &port.Protocol); err != nil {
			return nil, fmt.Errorf("failed to scan port: %w", err)
		}
		ports = append(ports, port)
	}
	return ports, rows.Err()
}

// AddPort links the port to the class, creating the puerto row if needed
func (r *Repository) AddPort(ctx context.Context, classID int, group models.Group, port models.Port) error {
	var portID int
	err := r.tx.QueryRowContext(ctx, r.q(models.FindPortQuery), port.Number, port.Protocol).Scan(&portID)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.tx.QueryRowContext(ctx, r.q(models.InsertPortQuery), port.Number, port.Protocol).Scan(&portID)
	}
	if err != nil {
		return fmt.Errorf("failed to get port %s: %w", port, err)
	}

	if _, err := r.tx.ExecContext(ctx, r.q(models.AddClassPortQuery), classID, portID, string(group)); err != nil {
		return fmt.Errorf("failed to add port %s to class %d: %w", port, classID, err)
	}
	logrus.Debugf("Class %d: added %s port %s", classID, group, port)
	return nil
}

func (r *Repository) RemovePort(ctx context.Context, classID int, group models.Group, port models.Port) error {
	_, err := r.tx.ExecContext(ctx, r.q(models.RemoveClassPortQuery),
		classID, string(group), port.Number, port.Protocol)
	if err != nil {
		return fmt.Errorf("failed to remove port %s from class %d: %w", port, classID, err)
	}
	logrus.Debugf("Class %d: removed %s port %s", classID, group, port)
	return nil
}
