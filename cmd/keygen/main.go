package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/makkenzo/device-license-service/internal/config"
	"github.com/makkenzo/device-license-service/internal/service"
	"github.com/makkenzo/device-license-service/pkg/licensekey"
	"github.com/makkenzo/device-license-service/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file (salt, timezone, tiers)")
	deviceID := flag.String("device", "", "Device id (full hash or 8 character prefix); use ADMIN for a wildcard key")
	tier := flag.String("tier", "WEEK", "Tier name (WEEKLY) or 4 character code (WEEK)")
	expiry := flag.String("expiry", "", "Expiry date YYYY-MM-DD; overrides -days")
	days := flag.Int("days", -1, "Days from today until expiry; defaults to the tier duration, 0 for no embedded expiry")
	hashPassword := flag.String("hash-password", "", "Print the bcrypt hash of this password for auth.adminPasswordHash and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*hashPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(string(hash))
		return
	}

	if *deviceID == "" {
		fmt.Fprintln(os.Stderr, "-device is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	location, err := cfg.License.Location()
	if err != nil {
		log.Fatalf("Invalid license timezone: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	issuance := service.NewIssuanceService(licensekey.NewCodec(cfg.License.Salt, location), cfg.License.Tiers, nil, nil, nil, appLogger)

	tierCode := *tier
	tierDays := 0
	if t, err := issuance.FindTier(*tier); err == nil {
		tierCode = t.Code
		tierDays = t.Days
	}

	var expiresAt *time.Time
	switch {
	case *expiry != "":
		t, err := time.ParseInLocation("2006-01-02", *expiry, location)
		if err != nil {
			log.Fatalf("Invalid -expiry %q: %v", *expiry, err)
		}
		expiresAt = &t
	case *days > 0:
		t := time.Now().In(location).AddDate(0, 0, *days)
		expiresAt = &t
	case *days < 0 && tierDays > 0:
		t := time.Now().In(location).AddDate(0, 0, tierDays)
		expiresAt = &t
	}

	key, err := issuance.GenerateKey(*deviceID, tierCode, expiresAt)
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}

	fmt.Printf("License key: %s\n", key)
	fmt.Printf("Device prefix: %s\n", licensekey.DevicePrefix(*deviceID))
	if expiresAt != nil {
		fmt.Printf("Expires: %s 23:59:59 %s\n", expiresAt.Format("2006-01-02"), location)
	} else {
		fmt.Printf("Expires: %d months after first activation\n", cfg.License.DefaultValidityMonths)
	}
}
