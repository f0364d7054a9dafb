// Package diagnostics implements the one-shot modes: device name validation,
// the raw variable dump and the product identity dump.
//
// The raw dump is sorted by key rather than kept in server order, and the
// identity dump labels ups.vendorid as "UPS Vendor ID". Both are deliberate.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	agenterrors "ups-metric-sender/internal/errors"
	"ups-metric-sender/internal/ups"
)

// Source lists and reads UPS devices
type Source interface {
	ListDeviceNames(ctx context.Context) ([]string, error)
	FetchDeviceVars(ctx context.Context, device string) (map[string]string, error)
}

type addresser interface {
	Address() string
}

func sourceAddress(src Source) string {
	if a, ok := src.(addresser); ok {
		return a.Address()
	}
	return ""
}

// ValidateDeviceName fails with a DeviceUnreachableError listing the valid
// names when device is not served by src
func ValidateDeviceName(ctx context.Context, src Source, device string) error {
	names, err := src.ListDeviceNames(ctx)
	if err != nil {
		return asUnreachable("list devices", err, device, src)
	}

	for _, name := range names {
		if name == device {
			return nil
		}
	}
	return agenterrors.UnknownDeviceError(device, sourceAddress(src), names)
}

// DumpAll writes every variable of device as "key: value", sorted by key
func DumpAll(ctx context.Context, src Source, device string, w io.Writer) error {
	vars, err := src.FetchDeviceVars(ctx, device)
	if err != nil {
		return asUnreachable("fetch", err, device, src)
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s: %s\n", k, vars[k]); err != nil {
			return err
		}
	}
	return nil
}

// DumpProductInfo writes the vendor, model, product id, serial and vendor id
// of device. Absent values print as "unknown".
func DumpProductInfo(ctx context.Context, src Source, device string, w io.Writer) error {
	vars, err := src.FetchDeviceVars(ctx, device)
	if err != nil {
		return asUnreachable("fetch", err, device, src)
	}

	info := ups.ProductInfoFrom(vars)
	_, err = fmt.Fprintf(w,
		"UPS Vendor: %s\nUPS Model: %s\nUPS Product ID: %s\nUPS Serial: %s\nUPS Vendor ID: %s\n",
		info.Vendor, info.Model, info.ProductID, info.Serial, info.VendorID)
	return err
}

func asUnreachable(op string, err error, device string, src Source) error {
	var unreachable *agenterrors.DeviceUnreachableError
	if errors.As(err, &unreachable) {
		return err
	}
	return agenterrors.NewDeviceUnreachableError(op, err, device, sourceAddress(src))
}
