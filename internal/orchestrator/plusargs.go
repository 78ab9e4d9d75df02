package orchestrator

import (
	"fmt"
	"path/filepath"

	"fireslurm/internal/config"
)

// Simulated NIC and PCIe parameters. The driver refuses to start without
// them even though the design does not use the NIC.
const (
	macAddress     = "00:12:6D:00:00:02"
	linkLatency    = 6405
	netBandwidth   = 200
	autocounterHz  = 100000000
	pciVendor      = "0x10ee"
	pciDevice      = "0x903f"
	UARTLogName    = "uartlog"
	autocounterLog = "AUTOCOUNTERFILE"
)

// SimCommand returns the host-side argv that runs the simulation driver
// for cfg, writing its logs into logDir.
func SimCommand(cfg config.RunConfig, logDir string) []string {
	return append([]string{"sudo", config.DriverPath(cfg.SimConfig)}, Plusargs(cfg, logDir)...)
}

// Plusargs renders the driver's runtime parameters. The order is fixed:
// +permissive-off must come immediately before +prog0.
func Plusargs(cfg config.RunConfig, logDir string) []string {
	return []string{
		"+permissive",
		"+blkdev0=" + cfg.SimImage,
		"+blkdev-log0=" + filepath.Join(logDir, "blkdev-log0"),
		"+permissive-off",
		"+prog0=" + cfg.SimProgram,
		"+dwarf-file-name=" + cfg.SimProgram + "-dwarf",
		fmt.Sprintf("+autocounter-readrate=%d", autocounterHz),
		"+autocounter-filename-base=" + filepath.Join(logDir, autocounterLog),
		fmt.Sprintf("+print-start=%d", cfg.PrintStart),
		"+print-end=-1",
		"+macaddr0=" + macAddress,
		"+niclog0=niclog0",
		fmt.Sprintf("+linklatency0=%d", linkLatency),
		fmt.Sprintf("+netbw0=%d", netBandwidth),
		"+shmemportname0=default",
		"+domain=0x0000",
		"+bus=0x01",
		"+device=0x00",
		"+function=0x0",
		"+bar=0x0",
		"+pci-vendor=" + pciVendor,
		"+pci-device=" + pciDevice,
		"+disable-asserts",
	}
}
