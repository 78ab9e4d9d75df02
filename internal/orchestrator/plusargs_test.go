package orchestrator

import (
	"slices"
	"strings"
	"testing"

	"fireslurm/internal/config"
)

func TestSimCommand(t *testing.T) {
	cfg := config.RunConfig{
		Base: config.Base{
			SimConfig:  "/sims/vcu118",
			SimImage:   "/imgs/disk.img",
			SimProgram: "/imgs/linux-bbl",
		},
		PrintStart: 4200,
	}
	argv := SimCommand(cfg, "/logs/run-2024")

	if argv[0] != "sudo" || argv[1] != config.DriverPath("/sims/vcu118") {
		t.Fatalf("argv prefix = %q", argv[:2])
	}

	for _, want := range []string{
		"+blkdev0=/imgs/disk.img",
		"+blkdev-log0=/logs/run-2024/blkdev-log0",
		"+dwarf-file-name=/imgs/linux-bbl-dwarf",
		"+autocounter-filename-base=/logs/run-2024/AUTOCOUNTERFILE",
		"+print-start=4200",
		"+macaddr0=00:12:6D:00:00:02",
		"+linklatency0=6405",
		"+netbw0=200",
		"+bus=0x01",
		"+pci-vendor=0x10ee",
		"+pci-device=0x903f",
	} {
		if !slices.Contains(argv, want) {
			t.Errorf("missing %s in %s", want, strings.Join(argv, " "))
		}
	}

	i := slices.Index(argv, "+permissive-off")
	if i < 0 || i+1 >= len(argv) || argv[i+1] != "+prog0=/imgs/linux-bbl" {
		t.Errorf("+permissive-off must directly precede +prog0: %q", argv)
	}
	if argv[len(argv)-1] != "+disable-asserts" {
		t.Errorf("last argument = %q", argv[len(argv)-1])
	}
}
