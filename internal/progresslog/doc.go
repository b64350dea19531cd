// Copyright (c) 2020-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package progresslog provides periodic logging of connection activity.

Tests are included to ensure proper functionality.

## Feature Overview

- Maintains cumulative totals about connections between each logging interval
  - Total number of accepted client connections
  - Total number of established server links
  - Total number of closed connections
- Logs all cumulative data every 10 seconds
- Immediately logs any outstanding data when forced
*/
package progresslog
