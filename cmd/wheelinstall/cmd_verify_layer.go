package main

import (
	"archive/zip"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/go-python/wheelinstall/pkg/destination/ocilayer"
	"github.com/go-python/wheelinstall/pkg/fsutil"
	"github.com/go-python/wheelinstall/pkg/install"
	"github.com/go-python/wheelinstall/pkg/install/metadata"
	"github.com/go-python/wheelinstall/pkg/python"
	"github.com/go-python/wheelinstall/pkg/wheelsource"
)

func init() {
	var platFile string
	var installerName string
	cmd := &cobra.Command{
		Use:   "verify-layer [flags] IN_WHEELFILE.whl IN_LAYERFILE.tar",
		Short: "Check that a previously built OCI layer still matches installing the wheel fresh",
		Long: "Installs IN_WHEELFILE.whl in to a new in-memory OCI image layer, exactly as " +
			"the layer subcommand would, and compares it against IN_LAYERFILE.tar (a layer " +
			"produced by an earlier `wheelinstall layer` run) file by file, ignoring only " +
			"timestamps. Reports a mismatch if the wheel's content, the platform file, or " +
			"the installer's own output has drifted since IN_LAYERFILE.tar was built.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wheelPath, layerPath := args[0], args[1]

			yamlBytes, err := os.ReadFile(platFile)
			if err != nil {
				return err
			}
			var plat python.Platform
			if err := yaml.Unmarshal(yamlBytes, &plat, yaml.DisallowUnknownFields); err != nil {
				return fmt.Errorf("%s: %w", platFile, err)
			}
			if err := plat.Init(); err != nil {
				return fmt.Errorf("%s: %w", platFile, err)
			}

			zr, err := zip.OpenReader(wheelPath)
			if err != nil {
				return err
			}
			defer zr.Close()

			src, err := wheelsource.Open(&zr.Reader, wheelPath)
			if err != nil {
				return fmt.Errorf("%s: %w", wheelPath, err)
			}

			recordScheme := "platlib"
			if src.Metadata().RootIsPurelib {
				recordScheme = "purelib"
			}

			dst := &ocilayer.Destination{
				Schemes: map[string]string{
					"purelib": plat.Scheme.PureLib,
					"platlib": plat.Scheme.PlatLib,
					"headers": plat.Scheme.Headers,
					"scripts": plat.Scheme.Scripts,
					"data":    plat.Scheme.Data,
				},
				RecordScheme:       recordScheme,
				ConsoleInterpreter: plat.ConsoleShebang,
				GUIInterpreter:     plat.GraphicalShebang,
				PlatformTag:        plat.PlatformTag,
			}

			extra := map[string][]byte{
				"INSTALLER": metadata.Installer(installerName),
			}
			directURL, err := metadata.DirectURLJSON(metadata.DirectURL{
				URL: "file://" + wheelPath,
			})
			if err != nil {
				return err
			}
			extra["direct_url.json"] = directURL

			if err := install.Install(cmd.Context(), src, dst, plat, extra); err != nil {
				return err
			}

			rebuilt, err := dst.Layer()
			if err != nil {
				return err
			}

			onDisk, err := fsutil.OpenLayer(layerPath)
			if err != nil {
				return err
			}

			equal, err := fsutil.LayersEqualExceptTimestamps(rebuilt, onDisk)
			if err != nil {
				return err
			}
			if !equal {
				return fmt.Errorf("%s: does not match a fresh install of %s", layerPath, wheelPath)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (matches %s)\n", layerPath, wheelPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&platFile, "platform-file", "",
		"Read `IN_YAML_FILE` to determine details about the target platform")
	if err := cmd.MarkFlagRequired("platform-file"); err != nil {
		panic(err)
	}
	cmd.Flags().StringVar(&installerName, "installer-name", "wheelinstall",
		"Value written to the installed distribution's INSTALLER file")
	argparser.AddCommand(cmd)
}
