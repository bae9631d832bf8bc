// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package servicelayer

import "fmt"

// languageCodes maps the BoSuppLangs constant names used in configuration
// to the numeric codes the Service Layer login expects.
var languageCodes = map[string]int{
	"ln_Hebrew":        1,
	"ln_Spanish_Ar":    2,
	"ln_English":       3,
	"ln_Polish":        5,
	"ln_English_Sg":    6,
	"ln_Spanish_Pa":    7,
	"ln_English_Gb":    8,
	"ln_German":        9,
	"ln_Serbian":       10,
	"ln_Danish":        11,
	"ln_Norwegian":     12,
	"ln_Italian":       13,
	"ln_Hungarian":     14,
	"ln_Chinese":       15,
	"ln_Dutch":         16,
	"ln_Finnish":       17,
	"ln_Greek":         18,
	"ln_Portuguese":    19,
	"ln_Swedish":       20,
	"ln_English_Cy":    21,
	"ln_French":        22,
	"ln_Spanish":       23,
	"ln_Russian":       24,
	"ln_Spanish_La":    25,
	"ln_Czech_Cz":      26,
	"ln_Slovak_Sk":     27,
	"ln_Korean_Kr":     28,
	"ln_Portuguese_Br": 29,
	"ln_Japanese_Jp":   30,
	"ln_Turkish_Tr":    31,
}

// LanguageCode resolves a language name such as "ln_English". An empty
// name means the server default and resolves to 0.
func LanguageCode(name string) (int, error) {
	if name == "" {
		return 0, nil
	}
	code, ok := languageCodes[name]
	if !ok {
		return 0, fmt.Errorf("unknown SAP B1 language %q", name)
	}
	return code, nil
}

// dbServerTypes lists the BoDataServerTypes names accepted in configuration.
var dbServerTypes = map[string]bool{
	"dst_MSSQL2008": true,
	"dst_MSSQL2012": true,
	"dst_MSSQL2014": true,
	"dst_MSSQL2016": true,
	"dst_MSSQL2017": true,
	"dst_MSSQL2019": true,
	"dst_HANADB":    true,
}

// ValidateDBServerType checks a BoDataServerTypes name. The reporting
// queries are T-SQL, so HANA is refused.
func ValidateDBServerType(name string) error {
	if name == "" {
		return nil
	}
	if !dbServerTypes[name] {
		return fmt.Errorf("unknown SAP B1 database server type %q", name)
	}
	if name == "dst_HANADB" {
		return fmt.Errorf("database server type %s is not supported: reporting queries require SQL Server", name)
	}
	return nil
}
